// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database and identity provider settings, evidence storage, the
// track result cache, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-bribe-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SessionConfig configures the signed cookie that carries the provider tokens.
type SessionConfig struct {
	Secret     string        // SESSION_SECRET (required)
	CookieName string        // SESSION_COOKIE
	MaxAge     time.Duration // SESSION_MAX_AGE
	Secure     bool          // SESSION_SECURE
}

// ProviderConfig selects and configures the identity provider.
type ProviderConfig struct {
	Mode        string        // PROVIDER_MODE: local|remote
	URL         string        // PROVIDER_URL (remote)
	Key         string        // PROVIDER_KEY (remote)
	EmailDomain string        // PROVIDER_EMAIL_DOMAIN
	Timeout     time.Duration // PROVIDER_TIMEOUT

	// Local provider token settings.
	JWTSecret  string        // LOCAL_JWT_SECRET, defaults to SESSION_SECRET
	AccessTTL  time.Duration // LOCAL_ACCESS_TTL
	RefreshTTL time.Duration // LOCAL_REFRESH_TTL
}

// StorageConfig configures the evidence object store.
type StorageConfig struct {
	Type            string // STORAGE_TYPE: local|s3
	LocalPath       string // STORAGE_LOCAL_PATH
	PublicBaseURL   string // PUBLIC_BASE_URL
	ImagesBucket    string // IMAGES_BUCKET
	DocumentsBucket string // DOCUMENTS_BUCKET

	S3Region    string // S3_REGION
	S3Endpoint  string // S3_ENDPOINT (S3-compatible stores)
	S3PathStyle bool   // S3_PATH_STYLE
	AccessKey   string // AWS_ACCESS_KEY_ID
	SecretKey   string // AWS_SECRET_ACCESS_KEY
}

// CacheConfig configures the one-time track result cache.
type CacheConfig struct {
	Backend  string        // RESULT_CACHE: memory|redis
	RedisURL string        // REDIS_URL
	TTL      time.Duration // RESULT_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s, uploads go through the same server
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	Environment       string        // APP_ENV, reported to Sentry

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogFile        string // optional rotating log file
	SwaggerEnabled bool   // enable Swagger UI route
	BasePath       string // mount point for the routes

	// Persistence
	DatabaseURL string // postgres:// DSN or SQLite path

	// Reports
	MaxUploadBytes         int64 // body cap for POST /report_bribe
	TrackingMaxAttempts    int   // generator attempts per report
	TrackingCommitAttempts int   // whole-transaction reruns on commit-time collisions

	Session  SessionConfig
	Provider ProviderConfig
	Storage  StorageConfig
	Cache    CacheConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL      OTELConfig
	SentryDSN string
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	sessionSecret := getenv("SESSION_SECRET", "")

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		Environment:       getenv("APP_ENV", "development"),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogFile:        getenv("LOG_FILE", ""),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		BasePath:       normalizeBasePath(getenv("BASE_PATH", "/")),

		DatabaseURL: getenv("DATABASE_URL", ""),

		MaxUploadBytes:         int64(getint("MAX_UPLOAD_BYTES", 25<<20)),
		TrackingMaxAttempts:    getint("TRACKING_MAX_ATTEMPTS", 20),
		TrackingCommitAttempts: getint("TRACKING_COMMIT_ATTEMPTS", 3),

		Session: SessionConfig{
			Secret:     sessionSecret,
			CookieName: getenv("SESSION_COOKIE", "bribe_session"),
			MaxAge:     getdur("SESSION_MAX_AGE", 7*24*time.Hour),
			Secure:     getbool("SESSION_SECURE", false),
		},
		Provider: ProviderConfig{
			Mode:        strings.ToLower(getenv("PROVIDER_MODE", "local")),
			URL:         strings.TrimRight(getenv("PROVIDER_URL", ""), "/"),
			Key:         getenv("PROVIDER_KEY", ""),
			EmailDomain: getenv("PROVIDER_EMAIL_DOMAIN", "example.com"),
			Timeout:     getdur("PROVIDER_TIMEOUT", 10*time.Second),
			JWTSecret:   getenv("LOCAL_JWT_SECRET", sessionSecret),
			AccessTTL:   getdur("LOCAL_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:  getdur("LOCAL_REFRESH_TTL", 30*24*time.Hour),
		},
		Storage: StorageConfig{
			Type:            strings.ToLower(getenv("STORAGE_TYPE", "local")),
			LocalPath:       getenv("STORAGE_LOCAL_PATH", "uploads"),
			PublicBaseURL:   strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
			ImagesBucket:    getenv("IMAGES_BUCKET", "images"),
			DocumentsBucket: getenv("DOCUMENTS_BUCKET", "documents"),
			S3Region:        getenv("S3_REGION", "us-east-1"),
			S3Endpoint:      getenv("S3_ENDPOINT", ""),
			S3PathStyle:     getbool("S3_PATH_STYLE", false),
			AccessKey:       getenv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:       getenv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getenv("RESULT_CACHE", "memory")),
			RedisURL: getenv("REDIS_URL", ""),
			TTL:      getdur("RESULT_TTL", 5*time.Minute),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-bribe-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
		SentryDSN: getenv("SENTRY_DSN", ""),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, errors.New("DATABASE_URL must be set")
	}
	if strings.TrimSpace(cfg.Session.Secret) == "" {
		return cfg, errors.New("SESSION_SECRET must be set")
	}
	if len(cfg.Session.Secret) < 16 {
		return cfg, errors.New("SESSION_SECRET must be at least 16 bytes")
	}
	if cfg.Session.MaxAge <= 0 {
		return cfg, errors.New("SESSION_MAX_AGE must be > 0")
	}
	if err := validateProvider(cfg.Provider); err != nil {
		return cfg, err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return cfg, err
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Cache.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL must be set when RESULT_CACHE=redis")
		}
	default:
		return cfg, errors.New("RESULT_CACHE must be one of: memory, redis")
	}
	if cfg.Cache.TTL <= 0 {
		return cfg, errors.New("RESULT_TTL must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.TrackingMaxAttempts < 1 {
		return cfg, errors.New("TRACKING_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.TrackingCommitAttempts < 1 {
		return cfg, errors.New("TRACKING_COMMIT_ATTEMPTS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func validateProvider(p ProviderConfig) error {
	switch p.Mode {
	case "local":
		if strings.TrimSpace(p.JWTSecret) == "" {
			return errors.New("LOCAL_JWT_SECRET must be set when PROVIDER_MODE=local")
		}
		if p.AccessTTL <= 0 || p.RefreshTTL <= 0 {
			return errors.New("LOCAL_ACCESS_TTL and LOCAL_REFRESH_TTL must be > 0")
		}
	case "remote":
		if p.URL == "" || strings.TrimSpace(p.Key) == "" {
			return errors.New("PROVIDER_URL and PROVIDER_KEY must be set when PROVIDER_MODE=remote")
		}
	default:
		return errors.New("PROVIDER_MODE must be one of: local, remote")
	}
	if p.Timeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(p.EmailDomain) == "" {
		return errors.New("PROVIDER_EMAIL_DOMAIN must not be empty")
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	if strings.TrimSpace(s.ImagesBucket) == "" || strings.TrimSpace(s.DocumentsBucket) == "" {
		return errors.New("IMAGES_BUCKET and DOCUMENTS_BUCKET must not be empty")
	}
	switch s.Type {
	case "local":
		if strings.TrimSpace(s.LocalPath) == "" {
			return errors.New("STORAGE_LOCAL_PATH must not be empty")
		}
		if strings.TrimSpace(s.PublicBaseURL) == "" {
			return errors.New("PUBLIC_BASE_URL must be set when STORAGE_TYPE=local")
		}
	case "s3":
		if strings.TrimSpace(s.S3Region) == "" {
			return errors.New("S3_REGION must be set when STORAGE_TYPE=s3")
		}
	default:
		return errors.New("STORAGE_TYPE must be one of: local, s3")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

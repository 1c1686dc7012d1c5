package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// setRequired sets the variables Load refuses to default.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PUBLIC_BASE_URL", "http://localhost:8080/uploads")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	setRequired(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.BasePath != "/" {
		t.Fatalf("BasePath default expected '/', got %q", cfg.BasePath)
	}
}

// --- required settings ---

func TestLoad_SessionSecretRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("SESSION_SECRET", "")
	_, err := Load()
	if err == nil || !containsErr(err, "SESSION_SECRET must be set") {
		t.Fatalf("expected SESSION_SECRET error, got %v", err)
	}

	t.Setenv("SESSION_SECRET", "short")
	if _, err := Load(); err == nil || !containsErr(err, "at least 16 bytes") {
		t.Fatalf("expected short secret error, got %v", err)
	}
}

func TestLoad_DatabaseURLRequired(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_URL", "  ")
	if _, err := Load(); err == nil || !containsErr(err, "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // normalizes to "release"

	t.Setenv("LOG_LEVEL", "warning") // normalizes to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("LOG_FILE", "/tmp/app.log")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("BASE_PATH", "bribes/")

	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("TRACKING_MAX_ATTEMPTS", "7")
	t.Setenv("TRACKING_COMMIT_ATTEMPTS", "2")

	t.Setenv("PROVIDER_MODE", "REMOTE")
	t.Setenv("PROVIDER_URL", "https://auth.example.org/")
	t.Setenv("PROVIDER_KEY", "anon")
	t.Setenv("PROVIDER_TIMEOUT", "3s")

	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_PATH_STYLE", "1")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.org/")

	t.Setenv("RESULT_CACHE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RESULT_TTL", "1m")

	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example.org/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.LogFile != "/tmp/app.log" || !cfg.SwaggerEnabled || cfg.BasePath != "/bribes" {
		t.Fatalf("logging/docs fields unexpected: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1<<20 || cfg.TrackingMaxAttempts != 7 || cfg.TrackingCommitAttempts != 2 {
		t.Fatalf("report fields unexpected: %+v", cfg)
	}
	if cfg.Provider.Mode != "remote" || cfg.Provider.URL != "https://auth.example.org" || cfg.Provider.Timeout != 3*time.Second {
		t.Fatalf("provider fields unexpected: %+v", cfg.Provider)
	}
	if cfg.Storage.Type != "s3" || !cfg.Storage.S3PathStyle || cfg.Storage.PublicBaseURL != "https://cdn.example.org" {
		t.Fatalf("storage fields unexpected: %+v", cfg.Storage)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != time.Minute {
		t.Fatalf("cache fields unexpected: %+v", cfg.Cache)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate defaults unexpected: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("CORS origins = %#v; want %#v", cfg.CORS.AllowedOrigins, want)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour || cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("security/idempotency unexpected: %+v", cfg)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 || cfg.SentryDSN == "" {
		t.Fatalf("observability unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_LocalJWTSecretDefaultsToSessionSecret(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider.Mode != "local" || cfg.Provider.JWTSecret != cfg.Session.Secret {
		t.Fatalf("expected local provider sharing the session secret, got %+v", cfg.Provider)
	}
	if cfg.Provider.Timeout != 10*time.Second {
		t.Fatalf("PROVIDER_TIMEOUT default = %v; want 10s", cfg.Provider.Timeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"remote without url", map[string]string{"PROVIDER_MODE": "remote"}, "PROVIDER_URL and PROVIDER_KEY"},
		{"unknown provider", map[string]string{"PROVIDER_MODE": "ldap"}, "PROVIDER_MODE"},
		{"provider timeout", map[string]string{"PROVIDER_TIMEOUT": "0s"}, "PROVIDER_TIMEOUT"},
		{"unknown storage", map[string]string{"STORAGE_TYPE": "ftp"}, "STORAGE_TYPE"},
		{"local storage without public url", map[string]string{"STORAGE_TYPE": "local", "PUBLIC_BASE_URL": ""}, "PUBLIC_BASE_URL must be set"},
		{"local storage blank public url", map[string]string{"PUBLIC_BASE_URL": "   "}, "PUBLIC_BASE_URL must be set"},
		{"empty bucket", map[string]string{"IMAGES_BUCKET": " ", "DOCUMENTS_BUCKET": ""}, "BUCKET"},
		{"redis without url", map[string]string{"RESULT_CACHE": "redis"}, "REDIS_URL"},
		{"unknown cache", map[string]string{"RESULT_CACHE": "memcached"}, "RESULT_CACHE"},
		{"tracking attempts", map[string]string{"TRACKING_MAX_ATTEMPTS": "0"}, "TRACKING_MAX_ATTEMPTS"},
		{"commit attempts", map[string]string{"TRACKING_COMMIT_ATTEMPTS": "0"}, "TRACKING_COMMIT_ATTEMPTS"},
		{"upload cap", map[string]string{"MAX_UPLOAD_BYTES": "-1"}, "MAX_UPLOAD_BYTES"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", " yes ", "Y", "On"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "FALSE", " no ", "N", "off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got, want := splitCSV(" a, ,b ,  c  ,"), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}

// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, sessions, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-bribe-backend/docs"
	"github.com/tbourn/go-bribe-backend/internal/cache"
	"github.com/tbourn/go-bribe-backend/internal/config"
	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/http/handlers"
	"github.com/tbourn/go-bribe-backend/internal/http/middleware"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/repo"
	"github.com/tbourn/go-bribe-backend/internal/services"
	"github.com/tbourn/go-bribe-backend/internal/session"
	"github.com/tbourn/go-bribe-backend/internal/storage"
	"github.com/tbourn/go-bribe-backend/internal/trackid"
)

// repoShim adapts the repository free functions to the repo interfaces
// expected by the services.
type repoShim struct{}

func (repoShim) CreateUser(ctx context.Context, db *gorm.DB, id, username string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, id, username)
}

func (repoShim) GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUserByID(ctx, db, id)
}

func (repoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

func (repoShim) UsernameTaken(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	return repo.UsernameTaken(ctx, db, username)
}

func (repoShim) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	return repo.CodeExists(ctx, db, code)
}

func (repoShim) CreateReport(ctx context.Context, db *gorm.DB, r *domain.BribeReport) error {
	return repo.CreateReport(ctx, db, r)
}

func (repoShim) CountReports(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountReports(ctx, db)
}

func (repoShim) ListReportsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BribeReport, error) {
	return repo.ListReportsPage(ctx, db, offset, limit)
}

func (repoShim) ReportsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.ReportsStats(ctx, db)
}

func (repoShim) GetReportByCode(ctx context.Context, db *gorm.DB, code string) (*domain.BribeReport, error) {
	return repo.GetReportByCode(ctx, db, code)
}

func (repoShim) ListReportsByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.BribeReport, error) {
	return repo.ListReportsByUser(ctx, db, userID)
}

func (repoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, key, now)
}

func (repoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, key, bribeID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, key, bribeID, status, ttl)
}

// Deps are the external collaborators the routes need besides the database.
type Deps struct {
	Provider identity.Provider
	Store    storage.ObjectStore
	Results  cache.TrackResults
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID, Sentry hub, redacting logger, panic recovery
//  3. Metrics (then /health and /metrics, which skip everything below)
//  4. CORS and security headers
//  5. Cookie session and Authenticate (resolves the caller)
//  6. Idempotency validator (before the rate limiter; only POST /report_bribe replays)
//  7. Rate limiter (per user/IP, replays of POST /report_bribe skip it)
//  8. gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	reportSvc := &services.ReportService{
		DB:    db,
		Repo:  repoShim{},
		Codes: trackid.New(cfg.TrackingMaxAttempts),
		Evidence: &services.EvidencePipeline{
			Store:           deps.Store,
			ImagesBucket:    cfg.Storage.ImagesBucket,
			DocumentsBucket: cfg.Storage.DocumentsBucket,
			Timeout:         cfg.Provider.Timeout,
		},
		CommitAttempts: cfg.TrackingCommitAttempts,
		RetryDelay:     25 * time.Millisecond,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
	trackSvc := &services.TrackService{DB: db, Repo: repoShim{}, Results: deps.Results}
	accountSvc := &services.AccountService{
		DB:       db,
		Repo:     repoShim{},
		Provider: deps.Provider,
		Timeout:  cfg.Provider.Timeout,
	}
	gateway := &session.Gateway{Provider: deps.Provider, Timeout: cfg.Provider.Timeout}
	h := handlers.New(reportSvc, trackSvc, accountSvc, cfg.BasePath)

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Sentry())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"Apikey", "X-Api-Key"},
	}))
	r.Use(middleware.Recovery())

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.Use(session.Middleware(cfg.Session))
	r.Use(middleware.Authenticate(gateway))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Routes: []string{http.MethodPost + " " + routePath(cfg.BasePath, "/report_bribe")},
		},
		func(ctx context.Context, userID, key string, _ time.Time) (string, bool, error) {
			return reportSvc.Replay(ctx, userID, key)
		},
	))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Credential endpoints get their own per-IP budget.
	credRL := credentialLimiter(cfg.RateRPS, cfg.RateBurst)
	small := limitBody(1 << 20)
	noStore := middleware.NoStore()

	api := groupWithPrefix(r, cfg.BasePath)
	{
		// Reports
		api.GET("/", h.Index)
		api.GET("/report", middleware.RedirectAnonymous(cfg.BasePath), h.ReportForm)
		api.POST("/report_bribe", middleware.RequireAuth(), limitBody(cfg.MaxUploadBytes), h.ReportBribe)

		// Tracking
		api.POST("/track_bribe", noStore, small, h.TrackBribe)
		api.GET("/track_report", noStore, h.TrackReport)

		// Accounts
		api.POST("/check_username", noStore, small, credRL.Handler(), h.CheckUsername)
		api.POST("/signup", noStore, small, credRL.Handler(), h.SignUp)
		api.POST("/signin", noStore, small, credRL.Handler(), h.SignIn)
		api.POST("/signout", noStore, small, h.SignOut)
	}

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// credentialLimiter is the per-IP limiter for the credential endpoints, at
// half the global budget.
func credentialLimiter(rps float64, burst int) *middleware.RateLimiter {
	return middleware.NewRateLimiter(rps/2, max(burst/2, 1), middleware.KeyByIP())
}

// corsMiddleware allows every origin (without credentials) when no allowlist
// is configured; otherwise only the listed origins, with credentials so the
// session cookie is sent.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Idempotent-Replay"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		conf.AllowAllOrigins = true
		allowAll := cors.New(conf)
		return func(ctx *gin.Context) {
			// Force ACAO: * even without an Origin header (simple health checks).
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			allowAll(ctx)
		}
	}
	conf.AllowOrigins = c.AllowedOrigins
	conf.AllowCredentials = true
	return cors.New(conf)
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// routePath is the full registered path of p under prefix.
func routePath(prefix, p string) string {
	return strings.TrimRight(prefix, "/") + p
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

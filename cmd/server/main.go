// Command server runs the bribe reporting HTTP API.
//
// @title       Bribe Reporting API
// @version     1.0
// @description Citizen bribe reports: submission with evidence, public listing, tracking and accounts.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-bribe-backend/internal/cache"
	"github.com/tbourn/go-bribe-backend/internal/config"
	httpapi "github.com/tbourn/go-bribe-backend/internal/http"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/observability"
	"github.com/tbourn/go-bribe-backend/internal/repo"
	"github.com/tbourn/go-bribe-backend/internal/storage"
	"github.com/tbourn/go-bribe-backend/internal/sysutil"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logs := sysutil.ConfigureLogging(sysutil.LogOptions{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	defer logs.Close()

	build := observability.Build{
		Version:     sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev"),
		Environment: cfg.Environment,
	}

	flush, err := observability.SetupSentry(cfg.SentryDSN, build, cfg.GinMode == gin.DebugMode)
	if err != nil {
		log.Error().Err(err).Msg("sentry init failed")
	} else {
		defer flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, build)
	if err != nil {
		log.Error().Err(err).Msg("otel init failed")
	}

	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.Instrument(db); err != nil {
		log.Warn().Err(err).Msg("db tracing disabled")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var provider identity.Provider
	switch cfg.Provider.Mode {
	case "remote":
		provider = identity.NewRemoteProvider(cfg.Provider)
	default:
		local := identity.NewLocalProvider(db, cfg.Provider)
		if err := local.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate identity tables")
		}
		provider = local
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Storage.Type).Msg("init evidence storage")
	}
	results, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("init result cache")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{Provider: provider, Store: store, Results: results}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.Provider.Mode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}
	if c, ok := results.(io.Closer); ok {
		_ = c.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// SetupSentry initializes the global Sentry client. An empty DSN disables
// reporting; the returned flush is then a no-op.
func SetupSentry(dsn string, b Build, debug bool) (flush func(time.Duration) bool, err error) {
	if dsn == "" {
		log.Warn().Msg("sentry disabled: SENTRY_DSN not set")
		return func(time.Duration) bool { return true }, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "go-bribe-backend@" + b.Version,
		Environment:      b.Environment,
		Debug:            debug,
		AttachStacktrace: true,
		TracesSampleRate: 0.01,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("environment", b.Environment).Msg("sentry initialized")
	return sentry.Flush, nil
}

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-bribe-backend/internal/identity"
)

// Gateway resolves the caller's identity from a stored session, refreshing
// expired access tokens when possible.
type Gateway struct {
	Provider identity.Provider
	// Timeout bounds each provider call; 10s when zero.
	Timeout time.Duration
}

func (g *Gateway) timeout() time.Duration {
	if g.Timeout <= 0 {
		return 10 * time.Second
	}
	return g.Timeout
}

// ResolveCurrentUser returns the authenticated identity or nil.
//
//   - nothing stored, or no access token: nil
//   - access token valid: its identity
//   - otherwise the refresh token is exchanged and the new pair saved
//   - refresh impossible or rejected: the session is cleared, nil
//
// It never fails; provider and store errors are logged and treated as
// anonymous.
func (g *Gateway) ResolveCurrentUser(ctx context.Context, st Store) *identity.Identity {
	ctx, span := otel.Tracer("session/Gateway").Start(ctx, "ResolveCurrentUser")
	defer span.End()
	lg := zerolog.Ctx(ctx)

	blob, err := st.Load()
	if err != nil {
		lg.Warn().Err(err).Msg("unreadable session, clearing")
		g.clear(ctx, st)
		return nil
	}
	if blob == nil || blob.AccessToken == "" {
		span.SetAttributes(attribute.String("session.state", "anonymous"))
		return nil
	}

	if id := g.validate(ctx, blob.AccessToken); id != nil {
		span.SetAttributes(attribute.String("session.state", "valid"))
		return id
	}

	if blob.RefreshToken == "" {
		span.SetAttributes(attribute.String("session.state", "expired"))
		g.clear(ctx, st)
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, g.timeout())
	s, err := g.Provider.Refresh(rctx, blob.RefreshToken)
	cancel()
	if err != nil || s == nil {
		lg.Debug().Err(err).Msg("session refresh failed")
		span.SetAttributes(attribute.String("session.state", "expired"))
		g.clear(ctx, st)
		return nil
	}

	if err := st.Save(BlobFrom(s)); err != nil {
		lg.Warn().Err(err).Msg("save refreshed session")
	}
	span.SetAttributes(attribute.String("session.state", "refreshed"))

	if s.User.ID != "" {
		id := s.User
		return &id
	}
	return g.validate(ctx, s.AccessToken)
}

func (g *Gateway) validate(ctx context.Context, token string) *identity.Identity {
	vctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()
	id, err := g.Provider.GetUser(vctx, token)
	if err != nil || id == nil || id.ID == "" {
		return nil
	}
	return id
}

func (g *Gateway) clear(ctx context.Context, st Store) {
	if err := st.Clear(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("clear session")
	}
}

// Package services – AccountService
//
// This file implements pseudonymous accounts. Passwords and tokens live with
// the identity provider; the service enforces the username policy and keeps
// a local users row (keyed by the provider id) that reports reference.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/repo"
)

// UserRepo defines the repository contract required by AccountService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, id, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	UsernameTaken(ctx context.Context, db *gorm.DB, username string) (bool, error)
}

// AccountService handles sign-up, sign-in and username checks.
type AccountService struct {
	DB       *gorm.DB
	Repo     UserRepo
	Provider identity.Provider
	// Timeout bounds each provider call; 10s when zero.
	Timeout time.Duration
}

func (s *AccountService) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.Timeout
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// CheckUsername reports whether username satisfies the policy and is free
// both locally and at the provider.
func (s *AccountService) CheckUsername(ctx context.Context, username string) (bool, error) {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "CheckUsername")
	defer span.End()

	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	taken, err := s.Repo.UsernameTaken(ctx, s.DB, username)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()
	exists, err := s.Provider.UsernameExists(pctx, username)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return !exists, nil
}

// SignUp registers username with the provider and creates the local user.
func (s *AccountService) SignUp(ctx context.Context, username, password string) (*domain.User, error) {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "SignUp")
	defer span.End()

	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if taken, err := s.Repo.UsernameTaken(ctx, s.DB, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()
	id, err := s.Provider.SignUp(pctx, username, password)
	if errors.Is(err, identity.ErrUserExists) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	span.SetAttributes(attribute.String("user.id", id.ID))

	u, err := s.Repo.CreateUser(ctx, s.DB, id.ID, username)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrUsernameTaken
	}
	return u, err
}

// SignIn exchanges credentials for a provider session. The local user row is
// created if it is missing (for accounts registered elsewhere).
func (s *AccountService) SignIn(ctx context.Context, username, password string) (*identity.Session, error) {
	tr := otel.Tracer("services/AccountService")
	ctx, span := tr.Start(ctx, "SignIn")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	pctx, cancel := s.providerCtx(ctx)
	defer cancel()
	sess, err := s.Provider.SignIn(pctx, username, password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if sess.User.Username == "" {
		sess.User.Username = username
	}
	span.SetAttributes(attribute.String("user.id", sess.User.ID))

	if err := s.ensureUser(ctx, sess.User); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *AccountService) ensureUser(ctx context.Context, id identity.Identity) error {
	_, err := s.Repo.GetUserByID(ctx, s.DB, id.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	_, err = s.Repo.CreateUser(ctx, s.DB, id.ID, id.Username)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// SignOut revokes the provider session, best effort.
func (s *AccountService) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	pctx, cancel := s.providerCtx(ctx)
	defer cancel()
	if err := s.Provider.SignOut(pctx, accessToken); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("provider sign-out failed")
	}
}


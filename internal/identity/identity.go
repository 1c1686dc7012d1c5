// Package identity defines the contract with the identity provider that owns
// passwords and tokens, plus two implementations: a GoTrue-style HTTP client
// (RemoteProvider) and a self-hosted provider backed by GORM (LocalProvider).
//
// Providers are stateless. Tokens travel with every call so that one client
// can serve concurrent requests for different users.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned by SignIn for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when an access or refresh token is rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserExists is returned by SignUp when the account already exists.
	ErrUserExists = errors.New("user already exists")
)

// Identity is the provider's view of an authenticated user.
type Identity struct {
	ID       string
	Username string
	Email    string
}

// Session is a token pair issued by SignIn or Refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         Identity
}

// Provider is implemented by identity backends.
type Provider interface {
	SignUp(ctx context.Context, username, password string) (*Identity, error)
	SignIn(ctx context.Context, username, password string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// EmailFor maps a username to the synthetic address registered with the provider.
func EmailFor(username, domain string) string {
	return strings.ToLower(username) + "@" + strings.TrimPrefix(domain, "@")
}

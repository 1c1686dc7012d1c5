// Package session keeps the identity provider's tokens in a signed cookie and
// resolves the current user from them on every request.
package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/config"
	"github.com/tbourn/go-bribe-backend/internal/identity"
)

// authKey is the cookie session key holding the encoded Blob.
const authKey = "auth"

// Blob is the per-user state persisted between requests.
type Blob struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// BlobFrom converts a provider session into its stored form.
func BlobFrom(s *identity.Session) Blob {
	return Blob{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.User.ID,
		Username:     s.User.Username,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Store loads and persists the Blob for one request.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Load() (*Blob, error)
	Save(Blob) error
	Clear() error
}

// Middleware installs the signed cookie session used by CookieStore.
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.CookieName, store)
}

type cookieStore struct {
	s sessions.Session
}

// CookieStore returns the Store bound to the request's cookie session.
// Middleware must run first.
func CookieStore(c *gin.Context) Store {
	return cookieStore{s: sessions.Default(c)}
}

func (cs cookieStore) Load() (*Blob, error) {
	raw, ok := cs.s.Get(authKey).(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var b Blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (cs cookieStore) Save(b Blob) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	cs.s.Set(authKey, string(raw))
	return cs.s.Save()
}

func (cs cookieStore) Clear() error {
	cs.s.Delete(authKey)
	return cs.s.Save()
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLocal(t *testing.T) *LocalProvider {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	p := &LocalProvider{
		DB:          db,
		Secret:      []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		EmailDomain: "example.com",
		Cost:        bcrypt.MinCost,
	}
	if err := p.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return p
}

func TestLocal_SignUpSignInGetUser(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()

	id, err := p.SignUp(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if id.ID == "" || id.Username != "alice" || id.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if _, err := p.SignUp(ctx, "alice", "other12"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	exists, err := p.UsernameExists(ctx, "alice")
	if err != nil || !exists {
		t.Fatalf("UsernameExists(alice) = %v, %v", exists, err)
	}
	exists, _ = p.UsernameExists(ctx, "bobby")
	if exists {
		t.Fatalf("UsernameExists(bobby) = true")
	}

	if _, err := p.SignIn(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}

	s, err := p.SignIn(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if s.AccessToken == "" || s.RefreshToken == "" || s.User.ID != id.ID {
		t.Fatalf("unexpected session: %+v", s)
	}

	got, err := p.GetUser(ctx, s.AccessToken)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ID != id.ID || got.Username != "alice" {
		t.Fatalf("GetUser = %+v", got)
	}
}

func TestLocal_GetUser_RejectsBadTokens(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	s, err := p.SignIn(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	for _, tok := range []string{"", "not-a-jwt", s.AccessToken + "x"} {
		if _, err := p.GetUser(ctx, tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("GetUser(%q) err = %v; want ErrInvalidToken", tok, err)
		}
	}

	other := *p
	other.Secret = []byte("another-secret-another-secret!!")
	if _, err := other.GetUser(ctx, s.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature accepted: %v", err)
	}

	// Expired once the clock passes the access TTL.
	p.Now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := p.GetUser(ctx, s.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestLocal_RefreshRotatesToken(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	s1, err := p.SignIn(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	s2, err := p.Refresh(ctx, s1.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s2.RefreshToken == s1.RefreshToken || s2.AccessToken == s1.AccessToken {
		t.Fatalf("tokens not rotated")
	}
	if s2.User.Username != "alice" {
		t.Fatalf("unexpected user: %+v", s2.User)
	}

	if _, err := p.Refresh(ctx, s1.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused refresh token accepted: %v", err)
	}
	if _, err := p.Refresh(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank refresh token accepted: %v", err)
	}
}

func TestLocal_RefreshExpired(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	s, err := p.SignIn(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	p.Now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired refresh token accepted: %v", err)
	}
}

func TestLocal_SignOutRevokesRefreshTokens(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	s, err := p.SignIn(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := p.SignOut(ctx, s.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after sign-out: %v", err)
	}
	if err := p.SignOut(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("SignOut(garbage) = %v", err)
	}
}

func TestEmailFor(t *testing.T) {
	if got := EmailFor("Alice", "@example.org"); got != "alice@example.org" {
		t.Fatalf("EmailFor = %q", got)
	}
}

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-bribe-backend/internal/config"
)

// Credential stores a local account's password hash.
type Credential struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Username     string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_identity_username"`
	Email        string    `gorm:"type:varchar(255);not null"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName overrides the default table name.
func (Credential) TableName() string { return "identity_credentials" }

// RefreshToken is a hashed, single-use refresh token.
type RefreshToken struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_identity_refresh_user"`
	TokenHash string    `gorm:"type:char(64);not null;uniqueIndex:ux_identity_refresh_hash"`
	Revoked   bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the default table name.
func (RefreshToken) TableName() string { return "identity_refresh_tokens" }

type accessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// LocalProvider issues HS256 access tokens and rotating refresh tokens from
// its own tables. It is meant for development, tests and single-node setups.
type LocalProvider struct {
	DB          *gorm.DB
	Secret      []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	EmailDomain string
	// Cost is the bcrypt cost; bcrypt.DefaultCost when zero.
	Cost int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewLocalProvider builds a LocalProvider from configuration.
func NewLocalProvider(db *gorm.DB, cfg config.ProviderConfig) *LocalProvider {
	return &LocalProvider{
		DB:          db,
		Secret:      []byte(cfg.JWTSecret),
		AccessTTL:   cfg.AccessTTL,
		RefreshTTL:  cfg.RefreshTTL,
		EmailDomain: cfg.EmailDomain,
	}
}

// Migrate creates the provider's tables.
func (p *LocalProvider) Migrate() error {
	return p.DB.AutoMigrate(&Credential{}, &RefreshToken{})
}

func (p *LocalProvider) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *LocalProvider) cost() int {
	if p.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return p.Cost
}

// SignUp registers username with a bcrypt password hash.
func (p *LocalProvider) SignUp(ctx context.Context, username, password string) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	cred := &Credential{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        EmailFor(username, p.EmailDomain),
		PasswordHash: string(hash),
		CreatedAt:    p.now(),
	}
	if err := p.DB.WithContext(ctx).Create(cred).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return &Identity{ID: cred.ID, Username: cred.Username, Email: cred.Email}, nil
}

// SignIn checks the password and issues a token pair.
func (p *LocalProvider) SignIn(ctx context.Context, username, password string) (*Session, error) {
	var cred Credential
	err := p.DB.WithContext(ctx).Where("username = ?", username).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(ctx, p.DB, &cred)
}

// GetUser validates an access token and returns its subject.
func (p *LocalProvider) GetUser(_ context.Context, accessToken string) (*Identity, error) {
	claims, err := p.parse(accessToken)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: claims.Subject, Username: claims.Username, Email: claims.Email}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked; presenting it again fails.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidToken
	}
	var out *Session
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := p.now()
		// Conditional revoke so two concurrent refreshes cannot both succeed.
		res := tx.Model(&RefreshToken{}).
			Where("token_hash = ? AND revoked = ? AND expires_at > ?", hashToken(refreshToken), false, now).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidToken
		}
		var stored RefreshToken
		if err := tx.Where("token_hash = ?", hashToken(refreshToken)).First(&stored).Error; err != nil {
			return err
		}
		var cred Credential
		if err := tx.Where("id = ?", stored.UserID).First(&cred).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		s, err := p.issue(ctx, tx, &cred)
		out = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SignOut revokes every refresh token of the token's subject.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.parse(accessToken)
	if err != nil {
		return err
	}
	return p.DB.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND revoked = ?", claims.Subject, false).
		Update("revoked", true).Error
}

// UsernameExists reports whether username is registered.
func (p *LocalProvider) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := p.DB.WithContext(ctx).Model(&Credential{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

func (p *LocalProvider) issue(ctx context.Context, db *gorm.DB, cred *Credential) (*Session, error) {
	now := p.now()
	exp := now.Add(p.AccessTTL)
	claims := accessClaims{
		Username: cred.Username,
		Email:    cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)
	rec := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    cred.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(p.RefreshTTL),
		CreatedAt: now,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         Identity{ID: cred.ID, Username: cred.Username, Email: cred.Email},
	}, nil
}

func (p *LocalProvider) parse(token string) (*accessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return p.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") || strings.Contains(low, "duplicate key")
}

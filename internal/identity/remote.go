package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tbourn/go-bribe-backend/internal/config"
)

// maxProviderBody caps how much of a provider response is read.
const maxProviderBody = 1 << 20

// RemoteProvider talks to a GoTrue-compatible auth server. Usernames are
// registered as synthetic e-mail addresses with the username in user metadata.
type RemoteProvider struct {
	BaseURL     string
	APIKey      string
	EmailDomain string
	HTTP        *http.Client
}

// NewRemoteProvider builds a RemoteProvider from configuration.
func NewRemoteProvider(cfg config.ProviderConfig) *RemoteProvider {
	return &RemoteProvider{
		BaseURL:     strings.TrimRight(cfg.URL, "/"),
		APIKey:      cfg.Key,
		EmailDomain: cfg.EmailDomain,
		HTTP:        &http.Client{Timeout: cfg.Timeout},
	}
}

// ProviderError carries a non-2xx response that did not map to a sentinel.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: status %d: %s", e.Status, e.Message)
}

// SignUp registers a new account.
func (p *RemoteProvider) SignUp(ctx context.Context, username, password string) (*Identity, error) {
	body := map[string]any{
		"email":    EmailFor(username, p.EmailDomain),
		"password": password,
		"data":     map[string]string{"username": username},
	}
	status, raw, err := p.do(ctx, http.MethodPost, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		msg := errorMessage(raw)
		low := strings.ToLower(msg)
		if status == http.StatusUnprocessableEntity || strings.Contains(low, "already registered") || strings.Contains(low, "already exists") {
			return nil, ErrUserExists
		}
		return nil, &ProviderError{Status: status, Message: msg}
	}
	// Depending on confirmation settings the server returns a bare user or a
	// session with a nested user.
	user := gjson.GetBytes(raw, "user")
	if !user.Exists() {
		user = gjson.ParseBytes(raw)
	}
	id := parseIdentity(user)
	if id.ID == "" {
		return nil, &ProviderError{Status: status, Message: "missing user id"}
	}
	if id.Username == "" {
		id.Username = username
	}
	return &id, nil
}

// SignIn exchanges a password for a session.
func (p *RemoteProvider) SignIn(ctx context.Context, username, password string) (*Session, error) {
	body := map[string]string{
		"email":    EmailFor(username, p.EmailDomain),
		"password": password,
	}
	status, raw, err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case status >= 400:
		return nil, &ProviderError{Status: status, Message: errorMessage(raw)}
	}
	return parseSession(raw)
}

// GetUser validates accessToken against the provider.
func (p *RemoteProvider) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidToken
	}
	status, raw, err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return nil, ErrInvalidToken
	case status >= 400:
		return nil, &ProviderError{Status: status, Message: errorMessage(raw)}
	}
	id := parseIdentity(gjson.ParseBytes(raw))
	if id.ID == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// Refresh exchanges a refresh token for a new session.
func (p *RemoteProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidToken
	}
	body := map[string]string{"refresh_token": refreshToken}
	status, raw, err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return nil, ErrInvalidToken
	case status >= 400:
		return nil, &ProviderError{Status: status, Message: errorMessage(raw)}
	}
	return parseSession(raw)
}

// SignOut revokes the session behind accessToken.
func (p *RemoteProvider) SignOut(ctx context.Context, accessToken string) error {
	status, raw, err := p.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrInvalidToken
	case status >= 400:
		return &ProviderError{Status: status, Message: errorMessage(raw)}
	}
	return nil
}

// UsernameExists calls the username_exists RPC.
func (p *RemoteProvider) UsernameExists(ctx context.Context, username string) (bool, error) {
	status, raw, err := p.do(ctx, http.MethodPost, "/rest/v1/rpc/username_exists", "", map[string]string{"username": username})
	if err != nil {
		return false, err
	}
	if status >= 400 {
		return false, &ProviderError{Status: status, Message: errorMessage(raw)}
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.True && res.Type != gjson.False {
		return false, &ProviderError{Status: status, Message: "unexpected rpc result: " + strings.TrimSpace(string(raw))}
	}
	return res.Bool(), nil
}

func (p *RemoteProvider) client() *http.Client {
	if p.HTTP != nil {
		return p.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p *RemoteProvider) do(ctx context.Context, method, path, bearer string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("apikey", p.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = p.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.client().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("identity provider %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func parseIdentity(u gjson.Result) Identity {
	return Identity{
		ID:       u.Get("id").String(),
		Email:    u.Get("email").String(),
		Username: u.Get("user_metadata.username").String(),
	}
}

func parseSession(raw []byte) (*Session, error) {
	res := gjson.ParseBytes(raw)
	access := res.Get("access_token").String()
	if access == "" {
		return nil, &ProviderError{Status: http.StatusOK, Message: "missing access_token"}
	}
	s := &Session{
		AccessToken:  access,
		RefreshToken: res.Get("refresh_token").String(),
		User:         parseIdentity(res.Get("user")),
	}
	switch {
	case res.Get("expires_at").Exists():
		s.ExpiresAt = time.Unix(res.Get("expires_at").Int(), 0).UTC()
	case res.Get("expires_in").Exists():
		s.ExpiresAt = time.Now().UTC().Add(time.Duration(res.Get("expires_in").Int()) * time.Second)
	}
	return s, nil
}

func errorMessage(raw []byte) string {
	res := gjson.ParseBytes(raw)
	for _, k := range []string{"msg", "error_description", "message", "error"} {
		if v := res.Get(k).String(); v != "" {
			return v
		}
	}
	return strings.TrimSpace(string(raw))
}

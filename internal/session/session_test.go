package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/config"
	"github.com/tbourn/go-bribe-backend/internal/identity"
)

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(config.SessionConfig{
		Secret:     "0123456789abcdef",
		CookieName: "bribe_session",
		MaxAge:     time.Hour,
	}))
	r.POST("/save", func(c *gin.Context) {
		err := CookieStore(c).Save(BlobFrom(&identity.Session{
			AccessToken:  "a-1",
			RefreshToken: "r-1",
			User:         identity.Identity{ID: "u-1", Username: "alice"},
		}))
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/load", func(c *gin.Context) {
		b, err := CookieStore(c).Load()
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, b)
	})
	r.POST("/clear", func(c *gin.Context) {
		_ = CookieStore(c).Clear()
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCookieStore_RoundTrip(t *testing.T) {
	r := newSessionRouter()

	// Empty session loads as null.
	if w := do(r, http.MethodGet, "/load", nil); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "null" {
		t.Fatalf("empty load: %d %q", w.Code, w.Body.String())
	}

	w := do(r, http.MethodPost, "/save", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("save: %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != "bribe_session" || !cookies[0].HttpOnly {
		t.Fatalf("expected HttpOnly bribe_session cookie, got %+v", cookies)
	}
	if strings.Contains(cookies[0].Value, "a-1") {
		t.Fatalf("cookie value is not encoded")
	}

	w = do(r, http.MethodGet, "/load", cookies)
	var b Blob
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if b.AccessToken != "a-1" || b.RefreshToken != "r-1" || b.Username != "alice" || b.UserID != "u-1" {
		t.Fatalf("unexpected blob: %+v", b)
	}

	w = do(r, http.MethodPost, "/clear", cookies)
	cleared := w.Result().Cookies()
	w = do(r, http.MethodGet, "/load", cleared)
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Fatalf("expected cleared session, got %s", w.Body.String())
	}
}

func TestCookieStore_TamperedCookieIgnored(t *testing.T) {
	r := newSessionRouter()
	w := do(r, http.MethodGet, "/load", []*http.Cookie{{Name: "bribe_session", Value: "forged"}})
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "null" {
		t.Fatalf("forged cookie: %d %q", w.Code, w.Body.String())
	}
}

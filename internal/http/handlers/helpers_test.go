package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/config"
	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/http/middleware"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/services"
	"github.com/tbourn/go-bribe-backend/internal/session"
)

// ---------- service stubs ----------

type stubReports struct {
	create   func(context.Context, string, services.ReportInput) (*domain.BribeReport, error)
	listPage func(context.Context, int) ([]domain.BribeReport, int64, error)
	stats    func(context.Context) (int64, *time.Time, error)
	remember func(context.Context, string, string, string, int) error
}

func (s *stubReports) Create(ctx context.Context, uid string, in services.ReportInput) (*domain.BribeReport, error) {
	if s.create != nil {
		return s.create(ctx, uid, in)
	}
	return &domain.BribeReport{BribeID: "alce123456", UserID: uid}, nil
}

func (s *stubReports) ListPage(ctx context.Context, page int) ([]domain.BribeReport, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page)
	}
	return []domain.BribeReport{}, 0, nil
}

func (s *stubReports) Stats(ctx context.Context) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx)
	}
	return 0, nil, nil
}

func (s *stubReports) Remember(ctx context.Context, uid, key, bribeID string, status int) error {
	if s.remember != nil {
		return s.remember(ctx, uid, key, bribeID, status)
	}
	return nil
}

type stubTracks struct {
	find   func(context.Context, string, string) ([]domain.TrackedReport, error)
	stash  func(context.Context, []domain.TrackedReport) (string, error)
	redeem func(context.Context, string) ([]domain.TrackedReport, error)
}

func (s *stubTracks) Find(ctx context.Context, u, code string) ([]domain.TrackedReport, error) {
	if s.find != nil {
		return s.find(ctx, u, code)
	}
	return nil, services.ErrNoReports
}

func (s *stubTracks) Stash(ctx context.Context, rs []domain.TrackedReport) (string, error) {
	if s.stash != nil {
		return s.stash(ctx, rs)
	}
	return "tok", nil
}

func (s *stubTracks) Redeem(ctx context.Context, token string) ([]domain.TrackedReport, error) {
	if s.redeem != nil {
		return s.redeem(ctx, token)
	}
	return []domain.TrackedReport{}, nil
}

type stubAccounts struct {
	check   func(context.Context, string) (bool, error)
	signUp  func(context.Context, string, string) (*domain.User, error)
	signIn  func(context.Context, string, string) (*identity.Session, error)
	signOut []string
}

func (s *stubAccounts) CheckUsername(ctx context.Context, u string) (bool, error) {
	if s.check != nil {
		return s.check(ctx, u)
	}
	return true, nil
}

func (s *stubAccounts) SignUp(ctx context.Context, u, p string) (*domain.User, error) {
	if s.signUp != nil {
		return s.signUp(ctx, u, p)
	}
	return &domain.User{ID: "u1", Username: u}, nil
}

func (s *stubAccounts) SignIn(ctx context.Context, u, p string) (*identity.Session, error) {
	if s.signIn != nil {
		return s.signIn(ctx, u, p)
	}
	return &identity.Session{
		AccessToken:  "acc",
		RefreshToken: "ref",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         identity.Identity{ID: "u1", Username: u},
	}, nil
}

func (s *stubAccounts) SignOut(_ context.Context, token string) {
	s.signOut = append(s.signOut, token)
}

// ---------- router helpers ----------

type deps struct {
	reports  *stubReports
	tracks   *stubTracks
	accounts *stubAccounts
}

func newDeps() *deps {
	return &deps{reports: &stubReports{}, tracks: &stubTracks{}, accounts: &stubAccounts{}}
}

// asUser simulates Authenticate for a signed-in caller.
func asUser(id, username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != "" {
			c.Set("userID", id)
			c.Set("username", username)
			c.Set("identity", &identity.Identity{ID: id, Username: username})
		}
		c.Next()
	}
}

// newRouter mounts every handler behind RequestID, the cookie session and
// the simulated caller.
func newRouter(d *deps, userID, username string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(d.reports, d.tracks, d.accounts, "")
	r := gin.New()
	r.Use(middleware.RequestID(), session.Middleware(config.SessionConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		CookieName: "bribe_session",
		MaxAge:     time.Hour,
	}), asUser(userID, username))

	r.GET("/", h.Index)
	r.GET("/report", middleware.RedirectAnonymous("/"), h.ReportForm)
	r.POST("/report_bribe", middleware.RequireAuth(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{Routes: []string{"POST /report_bribe"}}, nil), h.ReportBribe)
	r.POST("/track_bribe", h.TrackBribe)
	r.GET("/track_report", h.TrackReport)
	r.POST("/check_username", h.CheckUsername)
	r.POST("/signup", h.SignUp)
	r.POST("/signin", h.SignIn)
	r.POST("/signout", h.SignOut)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error body: %v (%s)", err, w.Body.String())
	}
	if er.RequestID == "" {
		t.Fatalf("missing request id: %s", w.Body.String())
	}
	return er
}

// Report HTTP handlers.
//
// This file exposes the public report list and the authenticated report flow:
//   - GET  /              (paginated list, weak ETag)
//   - GET  /report        (form context)
//   - POST /report_bribe  (multipart create, Idempotency-Key replay)
//
// Handlers are transport-thin: they parse input, call application services,
// and translate results and sentinel errors into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/http/middleware"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/services"
	"github.com/tbourn/go-bribe-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ReportService creates and lists bribe reports.
type ReportService interface {
	// Create files a report for userID and returns it with its tracking code.
	Create(ctx context.Context, userID string, in services.ReportInput) (*domain.BribeReport, error)
	// ListPage returns a page of reports (largest amount first) and the total.
	ListPage(ctx context.Context, page int) ([]domain.BribeReport, int64, error)
	// Stats returns the report count and latest update time.
	Stats(ctx context.Context) (int64, *time.Time, error)
	// Remember records the tracking code created under an Idempotency-Key.
	Remember(ctx context.Context, userID, key, bribeID string, status int) error
}

// TrackService looks reports up by username and/or tracking code.
type TrackService interface {
	Find(ctx context.Context, username, code string) ([]domain.TrackedReport, error)
	Stash(ctx context.Context, reports []domain.TrackedReport) (string, error)
	Redeem(ctx context.Context, token string) ([]domain.TrackedReport, error)
}

// AccountService covers username checks, sign-up, sign-in and sign-out.
type AccountService interface {
	CheckUsername(ctx context.Context, username string) (bool, error)
	SignUp(ctx context.Context, username, password string) (*domain.User, error)
	SignIn(ctx context.Context, username, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. BasePath prefixes the redirect targets
// it emits.
type Handlers struct {
	reports  ReportService
	tracks   TrackService
	accounts AccountService
	basePath string
}

// New constructs a Handlers instance bound to the given services.
func New(reports ReportService, tracks TrackService, accounts AccountService, basePath string) *Handlers {
	return &Handlers{
		reports:  reports,
		tracks:   tracks,
		accounts: accounts,
		basePath: strings.TrimRight(basePath, "/"),
	}
}

// path joins p onto the base path.
func (h *Handlers) path(p string) string {
	return h.basePath + p
}

//
// DTOs
//

// IndexResponse is the public report list.
type IndexResponse struct {
	Reports    []domain.TrackedReport `json:"reports"`
	Page       int                    `json:"page"        example:"1"`
	Total      int64                  `json:"total"       example:"120"`
	TotalPages int                    `json:"total_pages" example:"3"`
	// Pages is the visible page-number window around Page.
	Pages []int `json:"pages" example:"1,2"`
	// Username is set when the caller is signed in.
	Username string `json:"username,omitempty" example:"alice"`
}

// ReportFormResponse is the context needed to render the report form.
type ReportFormResponse struct {
	Username       string   `json:"username" example:"alice"`
	States         []string `json:"states"`
	MaxDescription int      `json:"max_description" example:"3000"`
}

// ReportCreatedResponse carries the tracking code of a new report.
type ReportCreatedResponse struct {
	BribeID string `json:"bribe_id" example:"alce482913"`
}

//
// Helpers
//

var (
	errBodyTooLarge  = errors.New("request body too large")
	errMalformedForm = errors.New("malformed multipart form")
)

// reportInput reads the multipart report form. Files with an empty name are
// passed through; the evidence pipeline skips them. The form is parsed
// before any field is read so an oversized or broken body is reported as
// such rather than as missing fields. URL-encoded forms (no files) are
// accepted too.
func reportInput(c *gin.Context) (services.ReportInput, error) {
	form, err := c.MultipartForm()
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return services.ReportInput{}, errBodyTooLarge
	case err != nil && !errors.Is(err, http.ErrNotMultipart):
		return services.ReportInput{}, fmt.Errorf("%w: %w", errMalformedForm, err)
	}

	in := services.ReportInput{
		OfficialName: c.PostForm("official"),
		Department:   c.PostForm("department"),
		PinCode:      c.PostForm("pincode"),
		State:        c.PostForm("state"),
		District:     c.PostForm("district"),
		Description:  c.PostForm("description"),
		Date:         c.PostForm("date"),
	}

	raw := strings.TrimSpace(c.PostForm("amount"))
	if raw == "" {
		return in, &services.FieldError{Field: "amount", Message: "is required"}
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return in, &services.FieldError{Field: "amount", Message: "must be a whole number"}
	}
	in.Amount = amount

	if form != nil {
		in.Evidence = lo.Map(form.File["evidence_files"], func(fh *multipart.FileHeader, _ int) services.EvidenceFile {
			return services.EvidenceFile{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Open:        func() (io.ReadCloser, error) { return fh.Open() },
			}
		})
	}
	return in, nil
}

//
// Handlers
//

// Index godoc
// @ID          listReports
// @Summary     List reports (paginated)
// @Description Returns 50 reports per page, largest amount first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"reports:1:120:1700000000\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
//
// @Success     200  {object} handlers.IndexResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      / [get]
func (h *Handlers) Index(c *gin.Context) {
	ctx := c.Request.Context()
	page := max(utils.AtoiDefault(c.Query("page"), 1), 1)

	var username string
	if u := middleware.CurrentUser(c); u != nil {
		username = u.Username
	}

	// ETag pre-check (best effort).
	if count, maxTS, err := h.reports.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"reports:%s:%d:%d:%d"`, username, page, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reports.ListPage(ctx, page)
	if err != nil {
		failErr(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list reports", err)
		return
	}

	totalPages := utils.TotalPages(total, services.PageSize)
	ok(c, http.StatusOK, IndexResponse{
		Reports:    domain.NewTrackedReports(items),
		Page:       page,
		Total:      total,
		TotalPages: totalPages,
		Pages:      utils.PageWindow(page, totalPages),
		Username:   username,
	})
}

// ReportForm godoc
// @ID          reportForm
// @Summary     Report form context
// @Description Returns what the report form needs. Anonymous callers are redirected to the home page.
// @Tags        Reports
// @Produce     json
// @Success     200  {object} handlers.ReportFormResponse
// @Success     303  {string} string "Redirect to /"
// @Router      /report [get]
func (h *Handlers) ReportForm(c *gin.Context) {
	var username string
	if u := middleware.CurrentUser(c); u != nil {
		username = u.Username
	}
	ok(c, http.StatusOK, ReportFormResponse{
		Username:       username,
		States:         domain.States,
		MaxDescription: domain.MaxDescriptionLen,
	})
}

// ReportBribe godoc
// @ID          reportBribe
// @Summary     File a bribe report
// @Description Creates a report with optional evidence files and returns its tracking code. A repeated Idempotency-Key replays the earlier code.
// @Tags        Reports
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       Idempotency-Key  header    string  false "Replay protection key"  example(2f1c7d8e)
// @Param       official         formData  string  false "Official's name"
// @Param       department       formData  string  true  "Department"
// @Param       amount           formData  int     true  "Amount paid"
// @Param       pincode          formData  string  false "PIN code"
// @Param       state            formData  string  true  "State or union territory"
// @Param       district         formData  string  true  "District"
// @Param       description      formData  string  true  "What happened (max 3000 chars)"
// @Param       date             formData  string  false "Incident date (YYYY-MM-DD)"
// @Param       evidence_files   formData  file    false "Images or PDFs"
//
// @Success     201  {object} handlers.ReportCreatedResponse
// @Success     200  {object} handlers.ReportCreatedResponse "Idempotent replay"
// @Failure     400  {object} handlers.ErrorResponse "Missing or invalid field"
// @Failure     401  {object} handlers.ErrorResponse "Sign in required"
// @Failure     413  {object} handlers.ErrorResponse "Upload too large"
// @Failure     422  {object} handlers.ErrorResponse "Invalid date"
// @Failure     500  {object} handlers.ErrorResponse "Upload failed"
// @Router      /report_bribe [post]
func (h *Handlers) ReportBribe(c *gin.Context) {
	if middleware.IsReplay(c) {
		c.Header("Idempotent-Replay", "true")
		ok(c, http.StatusOK, ReportCreatedResponse{BribeID: middleware.ReplayedBribeID(c)})
		return
	}

	in, err := reportInput(c)
	switch {
	case errors.Is(err, errBodyTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload exceeds the size limit")
		return
	case errors.Is(err, errMalformedForm):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, errMalformedForm.Error())
		return
	case err != nil:
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	uid := middleware.UserID(c)
	report, err := h.reports.Create(c.Request.Context(), uid, in)
	switch {
	case err == nil:
	case isAny(err, services.ErrInvalidDate):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidDate, services.ErrInvalidDate.Error())
		return
	case isAny(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	case isAny(err, services.ErrUserNotFound):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in again")
		return
	case isAny(err, services.ErrEvidenceUpload):
		failErr(c, http.StatusInternalServerError, ErrCodeUploadFailed, "evidence upload failed, report not saved", err)
		return
	default:
		failErr(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not save report", err)
		return
	}

	if key, has := middleware.GetIdempotencyKey(c); has {
		if err := h.reports.Remember(c.Request.Context(), uid, key, report.BribeID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
		}
	}
	ok(c, http.StatusCreated, ReportCreatedResponse{BribeID: report.BribeID})
}

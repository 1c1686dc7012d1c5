// Tracking HTTP handlers.
//
//   - POST /track_bribe   (lookup by username and/or tracking code)
//   - GET  /track_report  (one-time result page behind a redirect token)
package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/services"
)

// noReportsMessage is shown when a lookup matches nothing.
const noReportsMessage = "No reports found."

// TrackResponse carries tracked reports, best match first.
type TrackResponse struct {
	Reports []domain.TrackedReport `json:"reports"`
}

// wantsJSON reports whether the client asked for a JSON body instead of a
// redirect.
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// TrackBribe godoc
// @ID          trackBribe
// @Summary     Track reports
// @Description Looks reports up by username and/or tracking code. An exact code match owned by the username comes first, then the user's other reports by amount. JSON clients get the list directly; others are redirected to a one-time result page.
// @Tags        Tracking
// @Accept      x-www-form-urlencoded
// @Produce     json
//
// @Param       username     formData  string  false "Reporter username"
// @Param       reportingId  formData  string  false "Tracking code"
//
// @Success     200  {object} handlers.TrackResponse
// @Success     303  {string} string "Redirect to /track_report?token=..."
// @Failure     404  {object} handlers.ErrorResponse "No reports found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /track_bribe [post]
func (h *Handlers) TrackBribe(c *gin.Context) {
	ctx := c.Request.Context()
	username := strings.TrimSpace(c.PostForm("username"))
	code := strings.TrimSpace(c.PostForm("reportingId"))

	reports, err := h.tracks.Find(ctx, username, code)
	if isAny(err, services.ErrNoReports) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, noReportsMessage)
		return
	}
	if err != nil {
		failErr(c, http.StatusInternalServerError, ErrCodeListFailed, "could not look up reports", err)
		return
	}

	if wantsJSON(c) {
		ok(c, http.StatusOK, TrackResponse{Reports: reports})
		return
	}

	token, err := h.tracks.Stash(ctx, reports)
	if err != nil {
		failErr(c, http.StatusInternalServerError, ErrCodeInternal, "could not store results", err)
		return
	}
	c.Redirect(http.StatusSeeOther, h.path("/track_report")+"?token="+url.QueryEscape(token))
}

// TrackReport godoc
// @ID          trackReport
// @Summary     One-time tracking results
// @Description Returns the results stored by POST /track_bribe. A token can be redeemed once; unknown or expired tokens yield an empty list.
// @Tags        Tracking
// @Produce     json
// @Param       token  query  string  false "Result token"
// @Success     200  {object} handlers.TrackResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /track_report [get]
func (h *Handlers) TrackReport(c *gin.Context) {
	reports, err := h.tracks.Redeem(c.Request.Context(), c.Query("token"))
	if err != nil {
		failErr(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load results", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, TrackResponse{Reports: reports})
}

// Account HTTP handlers.
//
//   - POST /check_username
//   - POST /signup
//   - POST /signin   (sets the session cookie)
//   - POST /signout  (clears it)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/http/middleware"
	"github.com/tbourn/go-bribe-backend/internal/services"
	"github.com/tbourn/go-bribe-backend/internal/session"
)

//
// DTOs
//

// CheckUsernameRequest is the JSON payload for a username availability check.
type CheckUsernameRequest struct {
	Username string `json:"username" binding:"required" example:"alice42"`
}

// CheckUsernameResponse reports whether a username can be registered.
type CheckUsernameResponse struct {
	Available bool `json:"available" example:"true"`
}

// CredentialsRequest is the JSON payload for sign-up and sign-in.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required" example:"alice42"`
	Password string `json:"password" binding:"required" example:"s3cret!"`
}

// SignInResponse confirms a sign-in and tells the client where to go next.
type SignInResponse struct {
	Message     string `json:"message"      example:"Signed in successfully"`
	RedirectURL string `json:"redirect_url" example:"/"`
}

//
// Handlers
//

// CheckUsername godoc
// @ID          checkUsername
// @Summary     Check username availability
// @Description Validates the username policy (3-20 letters or digits) and reports whether it is free.
// @Tags        Accounts
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CheckUsernameRequest  true  "Username"
// @Success     200  {object} handlers.CheckUsernameResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid username"
// @Failure     500  {object} handlers.ErrorResponse "Provider error"
// @Router      /check_username [post]
func (h *Handlers) CheckUsername(c *gin.Context) {
	var req CheckUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username required")
		return
	}

	available, err := h.accounts.CheckUsername(c.Request.Context(), req.Username)
	switch {
	case err == nil:
		ok(c, http.StatusOK, CheckUsernameResponse{Available: available})
	case isAny(err, services.ErrInvalidUsername):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case isAny(err, services.ErrProvider):
		failErr(c, http.StatusInternalServerError, ErrCodeProvider, "could not check username", err)
	default:
		failErr(c, http.StatusInternalServerError, ErrCodeInternal, "could not check username", err)
	}
}

// SignUp godoc
// @ID          signUp
// @Summary     Register
// @Description Creates a pseudonymous account.
// @Tags        Accounts
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     201  {object} handlers.MessageResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing or invalid field"
// @Failure     409  {object} handlers.ErrorResponse "Username taken"
// @Failure     500  {object} handlers.ErrorResponse "Provider error"
// @Router      /signup [post]
func (h *Handlers) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}

	_, err := h.accounts.SignUp(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, MessageResponse{Message: "Username created successfully"})
	case isAny(err, services.ErrInvalidUsername, services.ErrInvalidPassword):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case isAny(err, services.ErrUsernameTaken):
		fail(c, http.StatusConflict, ErrCodeUsernameTaken, "Username already exists")
	case isAny(err, services.ErrProvider):
		failErr(c, http.StatusInternalServerError, ErrCodeProvider, "could not create account", err)
	default:
		failErr(c, http.StatusInternalServerError, ErrCodeInternal, "could not create account", err)
	}
}

// SignIn godoc
// @ID          signIn
// @Summary     Sign in
// @Description Exchanges credentials for a session cookie.
// @Tags        Accounts
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     200  {object} handlers.SignInResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing field"
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Failure     500  {object} handlers.ErrorResponse "Provider error"
// @Router      /signin [post]
func (h *Handlers) SignIn(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password required")
		return
	}

	sess, err := h.accounts.SignIn(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case isAny(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid username or password")
		return
	case isAny(err, services.ErrProvider):
		failErr(c, http.StatusInternalServerError, ErrCodeProvider, "could not sign in", err)
		return
	default:
		failErr(c, http.StatusInternalServerError, ErrCodeInternal, "could not sign in", err)
		return
	}

	if err := session.CookieStore(c).Save(session.BlobFrom(sess)); err != nil {
		failErr(c, http.StatusInternalServerError, ErrCodeSessionFailed, "could not start session", err)
		return
	}
	ok(c, http.StatusOK, SignInResponse{Message: "Signed in successfully", RedirectURL: h.path("/")})
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Revokes the provider session (best effort), clears the cookie and redirects home.
// @Tags        Accounts
// @Success     303  {string} string "Redirect to /"
// @Router      /signout [post]
func (h *Handlers) SignOut(c *gin.Context) {
	st := session.CookieStore(c)
	if blob, err := st.Load(); err == nil && blob != nil {
		h.accounts.SignOut(c.Request.Context(), blob.AccessToken)
	}
	if err := st.Clear(); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("session clear failed")
	}
	c.Redirect(http.StatusSeeOther, h.path("/"))
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-bribe-backend/internal/domain"
	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/services"
)

func postJSON(h http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheckUsername(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		result bool
		err    error
		status int
		want   string
	}{
		{"available", `{"username":"abc123"}`, true, nil, http.StatusOK, `{"available":true}`},
		{"taken", `{"username":"abc123"}`, false, nil, http.StatusOK, `{"available":false}`},
		{"policy", `{"username":"ab"}`, false, services.ErrInvalidUsername, http.StatusBadRequest, ErrCodeValidation},
		{"provider", `{"username":"abc123"}`, false, fmt.Errorf("%w: %w", services.ErrProvider, errors.New("503")), http.StatusInternalServerError, ErrCodeProvider},
		{"missing", `{}`, false, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"not json", `username=abc`, false, nil, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		d := newDeps()
		d.accounts.check = func(context.Context, string) (bool, error) { return tc.result, tc.err }
		w := postJSON(newRouter(d, "", ""), "/check_username", tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: status = %d %s", tc.name, w.Code, w.Body.String())
		}
		if tc.status == http.StatusOK {
			if w.Body.String() != tc.want {
				t.Fatalf("%s: body = %s", tc.name, w.Body.String())
			}
			continue
		}
		if er := decodeError(t, w); er.Code != tc.want {
			t.Fatalf("%s: code = %s", tc.name, er.Code)
		}
	}
}

func TestSignUp(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"ok", `{"username":"abc123","password":"secret1"}`, nil, http.StatusCreated, ""},
		{"missing password", `{"username":"abc123"}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad username", `{"username":"a-b","password":"secret1"}`, services.ErrInvalidUsername, http.StatusBadRequest, ErrCodeValidation},
		{"short password", `{"username":"abc123","password":"x"}`, services.ErrInvalidPassword, http.StatusBadRequest, ErrCodeValidation},
		{"duplicate", `{"username":"abc123","password":"secret1"}`, services.ErrUsernameTaken, http.StatusConflict, ErrCodeUsernameTaken},
		{"provider", `{"username":"abc123","password":"secret1"}`, services.ErrProvider, http.StatusInternalServerError, ErrCodeProvider},
	}
	for _, tc := range cases {
		d := newDeps()
		d.accounts.signUp = func(_ context.Context, u, _ string) (*domain.User, error) {
			if tc.err != nil {
				return nil, tc.err
			}
			return &domain.User{ID: "u1", Username: u}, nil
		}
		w := postJSON(newRouter(d, "", ""), "/signup", tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: status = %d %s", tc.name, w.Code, w.Body.String())
		}
		if tc.code == "" {
			if w.Body.String() != `{"message":"Username created successfully"}` {
				t.Fatalf("%s: body = %s", tc.name, w.Body.String())
			}
			continue
		}
		if er := decodeError(t, w); er.Code != tc.code {
			t.Fatalf("%s: code = %s", tc.name, er.Code)
		}
	}
}

func TestSignIn_SetsCookieAndSignOutClears(t *testing.T) {
	d := newDeps()
	r := newRouter(d, "", "")

	w := postJSON(r, "/signin", `{"username":"alice","password":"secret1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("signin = %d %s", w.Code, w.Body.String())
	}
	var resp SignInResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RedirectURL != "/" || resp.Message == "" {
		t.Fatalf("resp = %+v", resp)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != "bribe_session" || !cookies[0].HttpOnly {
		t.Fatalf("session cookie not set: %+v", cookies)
	}

	w = postJSON(r, "/signout", ``, cookies...)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("signout = %d %q", w.Code, w.Header().Get("Location"))
	}
	if fmt.Sprint(d.accounts.signOut) != "[acc]" {
		t.Fatalf("provider sign-out = %v", d.accounts.signOut)
	}
	cleared := w.Result().Cookies()
	if len(cleared) == 0 || cleared[0].Name != "bribe_session" || cleared[0].Value == cookies[0].Value {
		t.Fatalf("session not rewritten: %+v", cleared)
	}
}

func TestSignOut_Anonymous(t *testing.T) {
	d := newDeps()
	w := postJSON(newRouter(d, "", ""), "/signout", ``)
	if w.Code != http.StatusSeeOther || len(d.accounts.signOut) != 0 {
		t.Fatalf("signout = %d calls=%v", w.Code, d.accounts.signOut)
	}
}

func TestSignIn_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing", `{"username":"alice"}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"wrong password", `{"username":"alice","password":"nope"}`, services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"provider", `{"username":"alice","password":"nope"}`, fmt.Errorf("%w: %w", services.ErrProvider, errors.New("timeout")), http.StatusInternalServerError, ErrCodeProvider},
	}
	for _, tc := range cases {
		d := newDeps()
		d.accounts.signIn = func(context.Context, string, string) (*identity.Session, error) { return nil, tc.err }
		w := postJSON(newRouter(d, "", ""), "/signin", tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: status = %d %s", tc.name, w.Code, w.Body.String())
		}
		if er := decodeError(t, w); er.Code != tc.code {
			t.Fatalf("%s: code = %s", tc.name, er.Code)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Fatalf("%s: cookie set on failure", tc.name)
		}
	}
}

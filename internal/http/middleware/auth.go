// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller from the session cookie. Authenticate runs on
// every route that cares about identity and never rejects a request; routes
// that need a signed-in user add RequireAuth (JSON 401) or RedirectAnonymous
// (303 to a page) after it.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bribe-backend/internal/identity"
	"github.com/tbourn/go-bribe-backend/internal/session"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUsername = "username"
	ctxKeyIdentity = "identity"
)

// Resolver is implemented by session.Gateway.
type Resolver interface {
	ResolveCurrentUser(ctx context.Context, st session.Store) *identity.Identity
}

// Authenticate resolves the current user from the cookie session and stores
// it under "userID", "username" and "identity". Anonymous requests pass
// through untouched.
func Authenticate(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := r.ResolveCurrentUser(c.Request.Context(), session.CookieStore(c)); id != nil {
			c.Set(ctxKeyUserID, id.ID)
			c.Set(ctxKeyUsername, id.Username)
			c.Set(ctxKeyIdentity, id)
		}
		c.Next()
	}
}

// CurrentUser returns the identity resolved by Authenticate, or nil.
func CurrentUser(c *gin.Context) *identity.Identity {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(*identity.Identity)
	return id
}

// UserID returns the authenticated user's id, or "".
func UserID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyUserID)
	return asString(v)
}

// RequireAuth aborts anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": GetRequestID(c),
				"code":       "unauthorized",
				"message":    "sign in required",
			})
			return
		}
		c.Next()
	}
}

// RedirectAnonymous sends anonymous requests to location with 303.
func RedirectAnonymous(location string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.Redirect(http.StatusSeeOther, location)
			c.Abort()
			return
		}
		c.Next()
	}
}

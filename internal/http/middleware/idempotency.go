// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for POST /report_bribe. It
// validates the header, and for a signed-in caller looks up a report already
// created under the same key, so the handler can replay its tracking code
// instead of filing the report twice:
//   - GetIdempotencyKey returns the validated key
//   - IsReplay / ReplayedBribeID expose a previous result
//   - replays bypass the rate limiter
//
// Only the routes named in IdempotencyOptions.Routes are looked up; on any
// other route a valid key is accepted and ignored.
//
// Persistence stays behind the IdempotencyLookup function type. Authenticate
// must run first; anonymous requests are never looked up.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header that carries the key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey     = "idem.key"
	ctxKeyIdemReplay  = "idem.replay"  // bool
	ctxKeyIdemBribeID = "idem.bribeID" // tracking code of the earlier result
	ctxKeyRateBypass  = "rate.bypass"  // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a completed request exists for this key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayedBribeID returns the tracking code recorded for this key.
func ReplayedBribeID(c *gin.Context) string {
	v, _ := c.Get(ctxKeyIdemBribeID)
	return asString(v)
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; defaults to ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
	// Routes lists "METHOD /full/path" entries (as registered, base path
	// included) whose keys are looked up and may replay.
	Routes []string
}

// IdempotencyLookup returns the tracking code created under (userID, key) if
// the record is still valid at now. TTL is enforced by the implementation.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (bribeID string, exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header, stashes it, and
// marks replays found by lookup. An absent header is a no-op; an invalid one
// is rejected with 400. Lookup failures are logged and ignored.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	routes := make(map[string]struct{}, len(opts.Routes))
	for _, r := range opts.Routes {
		routes[r] = struct{}{}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		_, scoped := routes[c.Request.Method+" "+c.FullPath()]
		if uid := UserID(c); scoped && lookup != nil && uid != "" {
			bribeID, exists, err := lookup(c.Request.Context(), uid, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			case exists:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemBribeID, bribeID)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for offer creation. It validates
// the Idempotency-Key header, optionally checks whether the key was already
// used within its scope, and annotates the request so downstream handlers
// can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed requests (IsReplay)
//   - bypass rate limiting when a replay is served (IsRateBypass)
//
// The record itself is written by the services in the same transaction as
// the offer, so a key is only ever "seen" once its offer exists.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored result exists
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored by
// IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already used in this request's scope.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope derives the key scope from the request. Defaults to ScopeFromPath.
	Scope func(c *gin.Context) string
}

// IdempotencyLookup answers whether an unexpired record exists for
// (userID, scope, key) at now. Errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (exists bool, err error)

// ScopeFromPath scopes keys to the job of /salary/negotiation/:jobId routes
// ("job:<jobId>") and to the session of /negotiations/:id routes.
func ScopeFromPath(c *gin.Context) string {
	if job := c.Param("jobId"); job != "" {
		return "job:" + job
	}
	return c.Param("id")
}

// IdempotencyValidator validates the Idempotency-Key header when present and
// stashes it in the context. A lookup hit marks the request as a replay and
// lets it bypass the rate limiter. The handler still decides how to serve
// the replay.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	scope := opts.Scope
	if scope == nil {
		scope = ScopeFromPath
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			exists, err := lookup(c.Request.Context(), userIDFromCtx(c), scope(c), key, time.Now().UTC())
			if err == nil && exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx resolves the caller the same way the handlers do: the
// "userID" context value, then X-User-ID, then "demo-user".
func userIDFromCtx(c *gin.Context) string {
	if id := callerID(c); id != "" {
		return id
	}
	return "demo-user"
}

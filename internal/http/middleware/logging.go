// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID injector, the structured access
// logger and panic recovery:
//
//   - RequestID() reuses or mints X-Request-ID and stores it in the context.
//   - Logger() attaches a request-scoped zerolog.Logger carrying the request
//     id, the caller and the negotiation or job the route addresses, then
//     emits one access line at a level picked from the outcome.
//   - Recovery() turns panics into the API error envelope.
//   - LoggerFrom() returns the request-scoped logger for handlers, e.g.
//     lg.Info().Str("offer_id", id).Msg("offer tracked").
//
// Order: RequestID, Logger (or RedactingLogger), Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused, otherwise a UUIDv4 is generated. The
// value is echoed on the response and stored under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access log for each request.
//
// The request-scoped logger is stored under "logger". Besides transport
// fields it carries user_id, and negotiation_id or job_id when the matched
// route has an :id or :jobId segment, so every line a handler emits through
// LoggerFrom can be joined back to the session it touched.
//
// Levels: error for 5xx or when handlers recorded gin errors, warn for 4xx,
// info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		lc := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", callerID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// ContentLength can be -1 if unknown.
			Int64("bytes_in", c.Request.ContentLength)
		if id := c.Param("id"); id != "" && strings.Contains(path, "/negotiations/:id") {
			lc = lc.Str("negotiation_id", id)
		}
		if job := c.Param("jobId"); job != "" {
			lc = lc.Str("job_id", job)
		}
		l := lc.Logger()

		c.Set("logger", &l)

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Bool("idempotent_replay", IsReplay(c)).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs a stack trace and, when nothing has been
// written yet, replies with the standard error envelope:
//
//	{"request_id":"...","code":"internal_error","message":"internal server error"}
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				v, _ := c.Get(requestIDKey)
				rid := asString(v)
				LoggerFrom(c).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a plain child of the
// global logger when Logger() is not installed. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// callerID is userIDFromCtx without the demo fallback; anonymous requests
// log an empty user_id.
func callerID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

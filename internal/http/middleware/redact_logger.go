// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the API. Salary
// figures are personal data here, so besides contact details and ids it also
// scrubs compensation amounts from query strings before anything is logged.
// Request and response bodies are never logged.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders:     []string{"X-Api-Key"},
//	    MaskQueryParams: []string{"competing_offer"},
//	}))
package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are header names (case-insensitive) whose values are fully
	// replaced, in addition to Authorization, Cookie and Set-Cookie.
	MaskHeaders []string
	// MaskQueryParams are query keys (case-insensitive) whose values are
	// replaced with [REDACTED:amount], in addition to every key mentioning
	// salary, compensation, bonus, equity or amount.
	MaskQueryParams []string
}

// amountKeyRE matches query keys that carry compensation figures.
var amountKeyRE = regexp.MustCompile(`(?i)salary|compensation|bonus|equity|amount`)

// RedactingLogger returns a Gin middleware that logs one structured line per
// request: INFO for 2xx/3xx, WARN for 4xx and ERROR for 5xx.
//
// UUIDs are redacted before phone numbers so the phone pattern never eats
// the digit groups of an id.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	uuidRE := regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE := regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE := regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)

	redact := func(s string) string {
		if s == "" {
			return s
		}
		out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
		out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
		return phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
	}

	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskParams := make(map[string]struct{}, len(opts.MaskQueryParams))
	for _, p := range opts.MaskQueryParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			maskParams[p] = struct{}{}
		}
	}

	scrubQuery := func(raw string) string {
		if raw == "" {
			return raw
		}
		vals, err := url.ParseQuery(raw)
		if err != nil {
			return redact(raw)
		}
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			_, masked := maskParams[strings.ToLower(k)]
			for _, v := range vals[k] {
				if masked || amountKeyRE.MatchString(k) {
					v = "[REDACTED:amount]"
				} else {
					v = redact(v)
				}
				parts = append(parts, k+"="+v)
			}
		}
		return strings.Join(parts, "&")
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrubQuery(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}

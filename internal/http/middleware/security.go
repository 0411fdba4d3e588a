// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders: conservative hardening headers for a
// JSON API behind a reverse proxy, cache rules for compensation data and the
// CORS expose list browser clients need to read the API's own headers.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exposedHeaders are response headers browser clients must be able to read:
// correlation ids, conditional-GET validators, conflict retry hints and the
// idempotent replay marker.
var exposedHeaders = []string{"X-Request-ID", "ETag", "Retry-After", "Idempotent-Replay"}

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	// Enable it only when traffic is HTTPS end-to-end.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// PrivateCache keeps salary data out of shared caches: reads get
	// "private, no-cache" so clients revalidate with If-None-Match, every
	// other method gets "no-store".
	PrivateCache bool
	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

// SecurityHeaders returns a Gin middleware that always sets
// X-Content-Type-Options, X-Frame-Options and Referrer-Policy, merges the
// API headers into Access-Control-Expose-Headers, and applies the optional
// policy, cache and HSTS headers from opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.PrivateCache {
			switch c.Request.Method {
			case http.MethodGet, http.MethodHead:
				h.Set("Cache-Control", "private, no-cache")
			default:
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
			}
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		h.Set("Access-Control-Expose-Headers", mergeHeaderList(h.Get("Access-Control-Expose-Headers"), exposedHeaders))

		c.Next()
	}
}

// mergeHeaderList appends the names in add missing from the comma separated
// list cur, compared case-insensitively, keeping cur's order.
func mergeHeaderList(cur string, add []string) string {
	seen := map[string]bool{}
	var out []string
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" && !seen[strings.ToLower(p)] {
			seen[strings.ToLower(p)] = true
			out = append(out, p)
		}
	}
	for _, p := range add {
		if !seen[strings.ToLower(p)] {
			seen[strings.ToLower(p)] = true
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the request used TLS directly or through a proxy
// that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Package utils provides small, generic helpers shared by the HTTP layer.
// Nothing here knows about negotiations or offers.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBadVersionTag is returned by ParseVersionTag for a malformed tag.
var ErrBadVersionTag = errors.New("malformed version tag")

// AtoiDefault converts a query value to an int, returning def when the value
// is empty or not an integer. Surrounding whitespace is ignored.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // 42
//	n = utils.AtoiDefault("", 10)   // 10
//	n = utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseVersionTag reads a resource version from an If-Match style header.
// Accepted forms are 3, "3" and W/"3". An empty header yields (nil, nil).
func ParseVersionTag(h string) (*int64, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return nil, nil
	}
	h = strings.TrimPrefix(h, "W/")
	h = strings.Trim(h, `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil || v < 1 {
		return nil, ErrBadVersionTag
	}
	return &v, nil
}

package handler

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ParseLimit reads ?limit=, falling back to DefaultLimit when absent or out of range.
func ParseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return limit
}

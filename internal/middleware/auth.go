package middleware

import (
	"net/http"
	"strings"

	"github.com/carmasterapp/car-master/internal/audit"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/httputil"
	"github.com/carmasterapp/car-master/internal/util"
)

// AdminAuthMiddleware guards operator endpoints with a bearer token checked
// against a bcrypt hash. With no hash configured every request is rejected.
type AdminAuthMiddleware struct {
	tokenHash string
}

func NewAdminAuthMiddleware(tokenHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{tokenHash: tokenHash}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		if m.tokenHash == "" || !util.CheckPasswordHash(token, m.tokenHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

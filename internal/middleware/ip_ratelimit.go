package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/carmasterapp/car-master/internal/audit"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/httputil"
	"github.com/carmasterapp/car-master/internal/service"
)

// IPRateLimitMiddleware throttles requests per client address.
type IPRateLimitMiddleware struct {
	limiter    service.Limiter
	retryAfter time.Duration
}

func NewIPRateLimitMiddleware(limiter service.Limiter, retryAfter time.Duration) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter:    limiter,
		retryAfter: retryAfter,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)

		if !m.limiter.Admit(r.Context(), ip) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			w.Header().Set("Retry-After", strconv.Itoa(int(m.retryAfter.Seconds())))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carmasterapp/car-master/internal/audit"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/service"
)

type PremiumHandler struct {
	redemption *service.RedemptionService
	retryAfter time.Duration
}

func NewPremiumHandler(redemption *service.RedemptionService, retryAfter time.Duration) *PremiumHandler {
	return &PremiumHandler{
		redemption: redemption,
		retryAfter: retryAfter,
	}
}

func (h *PremiumHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/validate-premium", h.ValidatePremium)
	r.Get("/entitlement", h.Entitlement)

	return r
}

// Emptiness is checked by the redemption service after rate limiting.
type validatePremiumRequest struct {
	Code     string `json:"code" validate:"max=64"`
	DeviceID string `json:"deviceId" validate:"max=256"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

type validatePremiumResponse struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	Features         []string       `json:"features"`
	Type             model.CodeType `json:"type"`
	AlreadyActivated bool           `json:"alreadyActivated,omitempty"`
	ActivatedAt      *time.Time     `json:"activatedAt,omitempty"`
}

// POST /api/validate-premium
func (h *PremiumHandler) ValidatePremium(w http.ResponseWriter, r *http.Request) {
	var req validatePremiumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.redemption.Redeem(r.Context(), service.RedeemRequest{
		Code:     req.Code,
		DeviceID: req.DeviceID,
		Email:    req.Email,
		Requester: model.RequesterInfo{
			IP:        audit.ClientIP(r),
			UserAgent: r.UserAgent(),
			Country:   r.Header.Get("CF-IPCountry"),
		},
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeRateLimitExceeded {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		}
		writeError(w, err)
		return
	}

	message := "Premium activated"
	if result.AlreadyActivated {
		message = "Code already activated on this device"
	}

	writeJSON(w, http.StatusOK, validatePremiumResponse{
		Success:          result.Success,
		Message:          message,
		Features:         result.Features,
		Type:             result.Type,
		AlreadyActivated: result.AlreadyActivated,
		ActivatedAt:      result.ActivatedAt,
	})
}

// GET /api/entitlement?code=&deviceId=
func (h *PremiumHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result, err := h.redemption.Entitlement(r.Context(), q.Get("code"), q.Get("deviceId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

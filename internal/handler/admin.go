package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/carmasterapp/car-master/internal/codec"
	apperrors "github.com/carmasterapp/car-master/internal/errors"
	"github.com/carmasterapp/car-master/internal/model"
	"github.com/carmasterapp/car-master/internal/repository"
	"github.com/carmasterapp/car-master/internal/service"
)

type AdminHandler struct {
	issuance    *service.IssuanceService
	stats       *service.StatsService
	codes       repository.CodeRepository
	activations repository.ActivationLogRepository
	middlewares []func(http.Handler) http.Handler
}

func NewAdminHandler(
	issuance *service.IssuanceService,
	stats *service.StatsService,
	codes repository.CodeRepository,
	activations repository.ActivationLogRepository,
	middlewares ...func(http.Handler) http.Handler,
) *AdminHandler {
	return &AdminHandler{
		issuance:    issuance,
		stats:       stats,
		codes:       codes,
		activations: activations,
		middlewares: middlewares,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.middlewares...)

	r.Post("/codes", h.IssueCodes)
	r.Get("/codes/{code}", h.GetCode)
	r.Get("/stats", h.Stats)
	r.Get("/activations", h.ListActivations)

	return r
}

type issueCodesRequest struct {
	Count int    `json:"count" validate:"required,min=1,max=1000"`
	Type  string `json:"type" validate:"required,oneof=customer influencer demo launch promo"`
	Notes string `json:"notes,omitempty" validate:"max=500"`
	Batch string `json:"batch,omitempty" validate:"omitempty,max=64,printascii"`
}

type issueCodesResponse struct {
	Codes []string       `json:"codes"`
	Count int            `json:"count"`
	Type  model.CodeType `json:"type"`
}

// POST /admin/codes
func (h *AdminHandler) IssueCodes(w http.ResponseWriter, r *http.Request) {
	var req issueCodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	codes, err := h.issuance.IssueBatch(r.Context(), service.IssueParams{
		Count: req.Count,
		Type:  model.CodeType(req.Type),
		Notes: req.Notes,
		Batch: req.Batch,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueCodesResponse{
		Codes: codes,
		Count: len(codes),
		Type:  model.CodeType(req.Type),
	})
}

// GET /admin/codes/{code}
func (h *AdminHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	code := codec.Normalize(chi.URLParam(r, "code"))
	if code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	rec, err := h.codes.Get(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("failed to load code")
		writeError(w, apperrors.StorageUnavailable(err))
		return
	}
	if rec == nil {
		writeError(w, apperrors.NotFound("Code"))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.stats.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// GET /admin/activations?limit=
func (h *AdminHandler) ListActivations(w http.ResponseWriter, r *http.Request) {
	logs, err := h.activations.ListRecent(r.Context(), ParseLimit(r))
	if err != nil {
		log.Error().Err(err).Msg("failed to list activations")
		writeError(w, apperrors.StorageUnavailable(err))
		return
	}
	if logs == nil {
		logs = []model.ActivationLog{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activations": logs,
		"count":       len(logs),
	})
}

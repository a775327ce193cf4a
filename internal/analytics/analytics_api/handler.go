package analytics_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"eventify/internal/analytics"
	"eventify/internal/apperr"
	"eventify/internal/auth"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

type AnalyticsService interface {
	GetEventAnalytics(ctx context.Context, externalAuthID string, eventID models.EventID) (*analytics.EventAnalytics, error)
	GetBatchEventAnalytics(ctx context.Context, externalAuthID string, eventIDs []models.EventID) (*analytics.EventAnalytics, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service AnalyticsService
	Logger  *logger.Logger
}

func NewHandler(service AnalyticsService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Get("/api/events/{id}/analytics", h.GetEventAnalytics)
	r.Post("/api/analytics/events/batch", h.GetBatchEventAnalytics)
}

func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := models.EventID(chi.URLParam(r, "id"))
	result, err := h.Service.GetEventAnalytics(r.Context(), auth.UserID(r.Context()), eventID)
	if err != nil {
		h.fail(w, "GetEventAnalytics", err)
		return
	}
	h.respond(w, result)
}

type batchRequest struct {
	EventIDs []models.EventID `json:"eventIds"`
}

func (h *Handler) GetBatchEventAnalytics(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "GetBatchEventAnalytics", apperr.Wrap(apperr.Invalid, err, "invalid request body"))
		return
	}

	result, err := h.Service.GetBatchEventAnalytics(r.Context(), auth.UserID(r.Context()), req.EventIDs)
	if err != nil {
		h.fail(w, "GetBatchEventAnalytics", err)
		return
	}
	h.respond(w, result)
}

func (h *Handler) respond(w http.ResponseWriter, body interface{}) {
	if err := utils.WriteJSON(w, http.StatusOK, body); err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
}

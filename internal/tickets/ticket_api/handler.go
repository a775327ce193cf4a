package ticket_api

import (
	"context"
	"fmt"
	"net/http"

	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketService interface {
	GetTotalTicketsCount(ctx context.Context) (int, error)
	GetTicketCountForEvent(ctx context.Context, eventID models.EventID) (int, error)
}

type Handler struct {
	TicketService TicketService
	Logger        *logger.Logger
}

func NewHandler(svc TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: svc, Logger: log}
}

// Routes mounts the public counters.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/tickets/count", h.GetTotalTicketsCount)
	r.Get("/api/events/{id}/tickets/count", h.GetEventTicketCount)
}

// TicketCountResponse is the response format for the ticket count endpoints
type TicketCountResponse struct {
	EventID    models.EventID `json:"eventId,omitempty"`
	TotalCount int            `json:"totalCount"`
}

func (h *Handler) GetTotalTicketsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.TicketService.GetTotalTicketsCount(r.Context())
	if err != nil {
		h.fail(w, "GetTotalTicketsCount", err)
		return
	}
	h.respond(w, TicketCountResponse{TotalCount: count})
}

func (h *Handler) GetEventTicketCount(w http.ResponseWriter, r *http.Request) {
	eventID := models.EventID(chi.URLParam(r, "id"))
	count, err := h.TicketService.GetTicketCountForEvent(r.Context(), eventID)
	if err != nil {
		h.fail(w, "GetEventTicketCount", err)
		return
	}
	h.respond(w, TicketCountResponse{EventID: eventID, TotalCount: count})
}

func (h *Handler) respond(w http.ResponseWriter, body interface{}) {
	if err := utils.WriteJSON(w, http.StatusOK, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := utils.WriteError(w, err); status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
}

package order_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"eventify/internal/auth"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

// CheckoutSubscriber is satisfied by sse.CheckoutEventEmitter.
type CheckoutSubscriber interface {
	SubscribeToEvent(ctx context.Context, eventID models.EventID) <-chan models.OrderItem
}

// Organizers gates the stream to the event's organizer.
type Organizers interface {
	AuthorizeOrganizer(ctx context.Context, externalAuthID string, eventID models.EventID) (*models.Event, error)
}

// SSEHandler streams recorded checkouts to an organizer's orders page.
type SSEHandler struct {
	Orders  Organizers
	Emitter CheckoutSubscriber
	Logger  *logger.Logger
}

func NewSSEHandler(orders Organizers, emitter CheckoutSubscriber, log *logger.Logger) *SSEHandler {
	return &SSEHandler{Orders: orders, Emitter: emitter, Logger: log}
}

func (h *SSEHandler) ProtectedRoutes(r chi.Router) {
	r.Get("/api/events/{id}/orders/stream", h.HandleEventCheckouts)
}

// HandleEventCheckouts streams checkout events for a specific event
func (h *SSEHandler) HandleEventCheckouts(w http.ResponseWriter, r *http.Request) {
	eventID := models.EventID(chi.URLParam(r, "id"))

	if _, err := h.Orders.AuthorizeOrganizer(r.Context(), auth.UserID(r.Context()), eventID); err != nil {
		h.Logger.Warn("SSE", fmt.Sprintf("Event access verification failed: %v", err))
		utils.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Debug("SSE", fmt.Sprintf("Could not clear write deadline: %v", err))
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.Emitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", string(eventID))
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to checkout events for event: %s", eventID))

	for {
		select {
		case item, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for event: %s", eventID))
				return
			}

			jsonData, err := json.Marshal(item)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize checkout event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: checkout\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from checkout events for: %s", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}

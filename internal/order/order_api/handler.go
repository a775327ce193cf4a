package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"eventify/internal/apperr"
	"eventify/internal/auth"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/order"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 64 << 10
)

type OrderService interface {
	Checkout(ctx context.Context, externalAuthID string, eventID models.EventID) (*order.CheckoutResult, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
	ListOrdersByEvent(ctx context.Context, externalAuthID string, eventID models.EventID, search string) ([]models.OrderItem, error)
	AuthorizeOrganizer(ctx context.Context, externalAuthID string, eventID models.EventID) (*models.Event, error)
	TicketPass(ctx context.Context, externalAuthID string, orderID models.OrderID) ([]byte, error)
	VerifyPass(ctx context.Context, externalAuthID, code string) (*models.Order, error)
}

type Handler struct {
	Orders OrderService
	Logger *logger.Logger
}

func NewHandler(orders OrderService, log *logger.Logger) *Handler {
	return &Handler{Orders: orders, Logger: log}
}

// Routes mounts the Stripe completion callback, which authenticates by signature.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/webhooks/stripe", h.StripeWebhook)
}

func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Post("/api/orders/checkout", h.Checkout)
	r.Get("/api/events/{id}/orders", h.ListEventOrders)
	r.Get("/api/orders/{orderId}/pass.png", h.TicketPass)
	r.Post("/api/orders/passes/verify", h.VerifyPass)
}

type checkoutRequest struct {
	EventID models.EventID `json:"eventId"`
}

// Checkout answers 303 to the hosted payment page, or to the profile page for free events.
// The body repeats the target so fetch clients that do not follow redirects can navigate.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, "Checkout", err)
		return
	}

	result, err := h.Orders.Checkout(r.Context(), auth.UserID(r.Context()), req.EventID)
	if err != nil {
		h.fail(w, "Checkout", err)
		return
	}

	w.Header().Set("Location", result.RedirectURL)
	h.respond(w, http.StatusSeeOther, result)
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("Stripe payload over %d bytes rejected", tooLarge.Limit))
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Error reading request body: %v", err))
		http.Error(w, "Error reading request body", http.StatusServiceUnavailable)
		return
	}

	if err := h.Orders.HandleStripeWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if whErr, ok := order.AsWebhookError(err); ok {
			http.Error(w, whErr.PublicError, whErr.StatusCode)
			return
		}
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Unhandled webhook error: %v", err))
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) ListEventOrders(w http.ResponseWriter, r *http.Request) {
	eventID := models.EventID(chi.URLParam(r, "id"))
	items, err := h.Orders.ListOrdersByEvent(r.Context(), auth.UserID(r.Context()), eventID, r.URL.Query().Get("searchString"))
	if err != nil {
		h.fail(w, "ListEventOrders", err)
		return
	}
	if items == nil {
		items = []models.OrderItem{}
	}
	h.respond(w, http.StatusOK, items)
}

func (h *Handler) TicketPass(w http.ResponseWriter, r *http.Request) {
	orderID := models.OrderID(chi.URLParam(r, "orderId"))
	png, err := h.Orders.TicketPass(r.Context(), auth.UserID(r.Context()), orderID)
	if err != nil {
		h.fail(w, "TicketPass", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("TicketPass: write failed: %v", err))
	}
}

type verifyPassRequest struct {
	Code string `json:"code"`
}

func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var req verifyPassRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, "VerifyPass", err)
		return
	}
	if req.Code == "" {
		h.fail(w, "VerifyPass", apperr.New(apperr.Invalid, "code is required"))
		return
	}

	o, err := h.Orders.VerifyPass(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		h.fail(w, "VerifyPass", err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.Invalid, err, "invalid request body")
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
}

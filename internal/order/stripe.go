package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"eventify/internal/apperr"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// NewStripeSessions returns the checkout session API of a client bound to key.
func NewStripeSessions(secretKey string) CheckoutSessions {
	sc := client.New(secretKey, nil)
	return sc.CheckoutSessions
}

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error  // Underlying error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// HandleStripeWebhook verifies a Stripe delivery and records the order of a completed checkout.
func (s *OrderService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.WebhookSecret == "" {
		s.Logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	// Verify signature with API version mismatch tolerance
	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.WebhookSecret, opts)
	if err != nil {
		s.Logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("stripe delivery rejected: %v", err))
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("Invalid webhook signature: %v", err),
			OriginalErr:   err,
		}
	}

	s.Logger.LogWebhook("STRIPE", string(event.Type), fmt.Sprintf("processing %s", event.ID))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return &WebhookError{
				Category:      "processing",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("Failed to unmarshal checkout session: %v", err),
				OriginalErr:   err,
			}
		}
		return s.completeCheckout(ctx, &session)

	default:
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}
	return nil
}

func (s *OrderService) completeCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	eventID := session.Metadata["eventId"]
	buyerID := session.Metadata["buyerId"]
	if eventID == "" || buyerID == "" {
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid checkout session data",
			InternalError: fmt.Sprintf("session %s: %v", session.ID, errMissingMetadata),
			OriginalErr:   errMissingMetadata,
		}
	}

	order, err := s.CreateOrder(ctx, models.CreateOrderParams{
		PaymentSessionID: session.ID,
		TotalAmount:      FormatMinorUnits(session.AmountTotal),
		EventID:          models.EventID(eventID),
		BuyerID:          models.UserID(buyerID),
	})
	switch {
	case apperr.Is(err, apperr.Conflict):
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Checkout session %s already recorded", session.ID))
		return nil
	case apperr.Is(err, apperr.Invalid):
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid checkout session data",
			InternalError: fmt.Sprintf("session %s: %v", session.ID, err),
			OriginalErr:   err,
		}
	case err != nil:
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Failed to record order",
			InternalError: fmt.Sprintf("Failed to record order for session %s: %v", session.ID, err),
			OriginalErr:   err,
		}
	}

	paidAt := utils.UnixTimeToTime(session.Created)
	s.Logger.Info("WEBHOOK", fmt.Sprintf("Recorded order %s for session %s (paid %s, USD %s)", order.ID, session.ID, paidAt.Format("2006-01-02 15:04:05"), order.TotalAmount))
	return nil
}

// AsWebhookError extracts the webhook classification of err, if any.
func AsWebhookError(err error) (*WebhookError, bool) {
	var whErr *WebhookError
	ok := errors.As(err, &whErr)
	return whErr, ok
}

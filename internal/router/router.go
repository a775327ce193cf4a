package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"eventify/internal/analytics/analytics_api"
	"eventify/internal/auth"
	"eventify/internal/events/events_api"
	"eventify/internal/logger"
	"eventify/internal/media"
	"eventify/internal/order/order_api"
	"eventify/internal/profile/profile_api"
	"eventify/internal/tickets/ticket_api"
	"eventify/internal/users/webhook_api"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Logger   *logger.Logger
	Verifier auth.Verifier

	Events    *events_api.Handler
	Orders    *order_api.Handler
	Stream    *order_api.SSEHandler
	Clerk     *webhook_api.Handler
	Profile   *profile_api.Handler
	Media     *media.Handler
	Analytics *analytics_api.Handler
	Tickets   *ticket_api.Handler

	// Ping reports backing store health for /health. Optional.
	Ping func(ctx context.Context) error
}

// New wires public and authenticated routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(d.Logger.Middleware)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Get("/health", health(d.Ping))
	r.Get("/", d.Events.ListEvents)
	d.Events.Routes(r)
	d.Orders.Routes(r)
	d.Tickets.Routes(r)
	r.Post("/api/webhooks/clerk", d.Clerk.HandleClerkWebhook)
	d.Logger.Info("ROUTER", "Public routes registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier, d.Logger))

		d.Events.ProtectedRoutes(r)
		d.Orders.ProtectedRoutes(r)
		d.Stream.ProtectedRoutes(r)
		d.Profile.ProtectedRoutes(r)
		d.Media.ProtectedRoutes(r)
		d.Analytics.ProtectedRoutes(r)
	})
	d.Logger.Info("ROUTER", "Protected routes registered")

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				status, code = fmt.Sprintf("degraded: %v", err), http.StatusServiceUnavailable
			}
		}
		_ = utils.WriteJSON(w, code, healthResponse{Status: status, Time: time.Now().UTC().Format(time.RFC3339)})
	}
}

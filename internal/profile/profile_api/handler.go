package profile_api

import (
	"context"
	"fmt"
	"net/http"

	"eventify/internal/auth"
	"eventify/internal/events"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/order"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type TicketLister interface {
	ListTickets(ctx context.Context, externalAuthID string, page, limit int) (*models.EventPage, error)
}

type OrganizedLister interface {
	ListEventsByOrganizer(ctx context.Context, externalAuthID string, page, limit int) (*models.EventPage, error)
}

// Profile is the caller's profile page: bought tickets and organized events.
type Profile struct {
	Tickets   *models.EventPage `json:"tickets"`
	Organized *models.EventPage `json:"organized"`
}

type Handler struct {
	Tickets   TicketLister
	Organized OrganizedLister
	Logger    *logger.Logger
}

func NewHandler(tickets TicketLister, organized OrganizedLister, log *logger.Logger) *Handler {
	return &Handler{Tickets: tickets, Organized: organized, Logger: log}
}

func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Get("/api/profile", h.GetProfile)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	q := r.URL.Query()
	ordersPage := utils.QueryInt(q.Get("ordersPage"))
	eventsPage := utils.QueryInt(q.Get("eventsPage"))

	var profile Profile
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		page, err := h.Tickets.ListTickets(ctx, userID, ordersPage, order.DefaultTicketsLimit)
		profile.Tickets = page
		return err
	})
	g.Go(func() error {
		page, err := h.Organized.ListEventsByOrganizer(ctx, userID, eventsPage, events.DefaultPageLimit)
		profile.Organized = page
		return err
	})

	if err := g.Wait(); err != nil {
		status := utils.WriteError(w, err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("GetProfile: %v", err))
		} else {
			h.Logger.Warn("API", fmt.Sprintf("GetProfile: %v", err))
		}
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, profile); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

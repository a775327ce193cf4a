package tickets

import (
	"context"
	"fmt"

	"eventify/internal/apperr"
	"eventify/internal/logger"
	"eventify/internal/models"
)

type DBLayer interface {
	GetTotalTicketsCount(ctx context.Context) (int, error)
	GetTicketCountForEvent(ctx context.Context, eventID models.EventID) (int, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id models.EventID) (*models.Event, error)
}

// TicketService answers the public attendance counters.
type TicketService struct {
	DB     DBLayer
	Events EventLookup
	Logger *logger.Logger
}

func NewTicketService(store DBLayer, events EventLookup, log *logger.Logger) *TicketService {
	return &TicketService{DB: store, Events: events, Logger: log}
}

func (s *TicketService) GetTotalTicketsCount(ctx context.Context) (int, error) {
	count, err := s.DB.GetTotalTicketsCount(ctx)
	if err != nil {
		s.Logger.Error("TICKETS", fmt.Sprintf("Failed to count tickets: %v", err))
		return 0, apperr.Wrap(apperr.Internal, err, "failed to count tickets")
	}
	return count, nil
}

// GetTicketCountForEvent is NotFound for unknown events rather than zero.
func (s *TicketService) GetTicketCountForEvent(ctx context.Context, eventID models.EventID) (int, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		return 0, err
	}
	count, err := s.DB.GetTicketCountForEvent(ctx, eventID)
	if err != nil {
		s.Logger.Error("TICKETS", fmt.Sprintf("Failed to count tickets of %s: %v", eventID, err))
		return 0, apperr.Wrap(apperr.Internal, err, "failed to count tickets")
	}
	return count, nil
}

package db

import (
	"context"

	"eventify/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetTotalTicketsCount returns how many tickets have been issued across all events.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Count(ctx)
}

// GetTicketCountForEvent returns how many tickets an event has issued.
func (d *DB) GetTicketCountForEvent(ctx context.Context, eventID models.EventID) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("o.event_id = ?", eventID).
		Count(ctx)
}

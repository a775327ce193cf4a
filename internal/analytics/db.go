package analytics

import (
	"context"
	"time"

	"eventify/internal/models"

	"github.com/uptrace/bun"
)

// OrderAmount is the slice of an order the sales figures are built from.
type OrderAmount struct {
	EventID          models.EventID `bun:"event_id"`
	PaymentSessionID string         `bun:"payment_session_id"`
	TotalAmount      string         `bun:"total_amount"`
	CreatedAt        time.Time      `bun:"created_at"`
}

type DB struct {
	Bun *bun.DB
}

// GetOrderAmountsByEventIDs retrieves the amounts of every order for the given events, oldest first.
func (d *DB) GetOrderAmountsByEventIDs(ctx context.Context, eventIDs []models.EventID) ([]OrderAmount, error) {
	var rows []OrderAmount
	if len(eventIDs) == 0 {
		return rows, nil
	}
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("o.event_id", "o.payment_session_id", "o.total_amount", "o.created_at").
		Where("o.event_id IN (?)", bun.In(eventIDs)).
		Order("o.created_at ASC").
		Scan(ctx, &rows)
	return rows, err
}

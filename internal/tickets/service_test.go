package tickets_test

import (
	"context"
	"testing"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/database/dbtest"
	eventdb "eventify/internal/events/db"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/tickets"
	ticketdb "eventify/internal/tickets/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketCounts(t *testing.T) {
	ctx := context.Background()
	bunDB := dbtest.NewSQLite(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := bunDB.NewInsert().Model(&models.Category{ID: "c1", Name: "Music", CreatedAt: now}).Exec(ctx)
	require.NoError(t, err)
	people := []models.User{
		{ID: "u1", ExternalAuthID: "user_1", Email: "1@example.com", Username: "one", Photo: "p", CreatedAt: now, UpdatedAt: now},
		{ID: "u2", ExternalAuthID: "user_2", Email: "2@example.com", Username: "two", Photo: "p", CreatedAt: now, UpdatedAt: now},
	}
	_, err = bunDB.NewInsert().Model(&people).Exec(ctx)
	require.NoError(t, err)
	evs := []models.Event{
		{ID: "e1", Title: "Jazz Night", ImageURL: "i", StartDateTime: now, EndDateTime: now, CategoryID: "c1", OrganizerID: "u1", CreatedAt: now, UpdatedAt: now},
		{ID: "e2", Title: "Dev Meetup", ImageURL: "i", StartDateTime: now, EndDateTime: now, CategoryID: "c1", OrganizerID: "u1", CreatedAt: now, UpdatedAt: now},
	}
	_, err = bunDB.NewInsert().Model(&evs).Exec(ctx)
	require.NoError(t, err)
	orders := []models.Order{
		{ID: "o1", PaymentSessionID: "cs_1", TotalAmount: "5", EventID: "e1", BuyerID: "u2", CreatedAt: now},
		{ID: "o2", PaymentSessionID: "cs_2", TotalAmount: "5", EventID: "e1", BuyerID: "u1", CreatedAt: now},
		{ID: "o3", PaymentSessionID: "cs_3", TotalAmount: "5", EventID: "e2", BuyerID: "u2", CreatedAt: now},
	}
	_, err = bunDB.NewInsert().Model(&orders).Exec(ctx)
	require.NoError(t, err)

	svc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, &eventdb.DB{Bun: bunDB}, logger.Nop())

	total, err := svc.GetTotalTicketsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	count, err := svc.GetTicketCountForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.GetTicketCountForEvent(ctx, "missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

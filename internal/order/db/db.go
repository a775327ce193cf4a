package db

import (
	"context"
	"strings"

	"eventify/internal/database"
	"eventify/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder → insert new order. A reused payment session is a Conflict.
func (d *DB) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := d.Bun.NewInsert().Model(o).Exec(ctx)
	return database.Translate(err, "order")
}

// GetOrderByID → fetch one order with its event and buyer
func (d *DB) GetOrderByID(ctx context.Context, id models.OrderID) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Event").
		Relation("Buyer", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "external_auth_id", "username", "first_name", "last_name")
		}).
		Where("o.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "order")
	}
	return &order, nil
}

// FindOrderForBuyer → the earliest order the buyer placed for the event
func (d *DB) FindOrderForBuyer(ctx context.Context, eventID models.EventID, buyerID models.UserID) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.event_id = ?", eventID).
		Where("o.buyer_id = ?", buyerID).
		OrderExpr("o.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "order")
	}
	return &order, nil
}

// ListOrdersByEvent → the event's orders, newest first, filtered by buyer username
func (d *DB) ListOrdersByEvent(ctx context.Context, eventID models.EventID, search string) ([]models.OrderItem, error) {
	var orders []models.Order
	q := d.Bun.NewSelect().
		Model(&orders).
		Relation("Event", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "title")
		}).
		Relation("Buyer", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "username")
		}).
		Where("o.event_id = ?", eventID)

	if s := strings.TrimSpace(search); s != "" {
		q = q.Where(`LOWER(buyer.username) LIKE ? ESCAPE '\'`, "%"+database.EscapeLike(strings.ToLower(s))+"%")
	}

	if err := q.OrderExpr("o.created_at DESC").OrderExpr("o.id DESC").Scan(ctx); err != nil {
		return nil, database.Translate(err, "list orders")
	}

	items := make([]models.OrderItem, 0, len(orders))
	for _, o := range orders {
		item := models.OrderItem{
			ID:          o.ID,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt,
			EventID:     o.EventID,
		}
		if o.Event != nil {
			item.EventTitle = o.Event.Title
		}
		if o.Buyer != nil {
			item.Buyer = o.Buyer.Username
		}
		items = append(items, item)
	}
	return items, nil
}

// ListEventsByBuyer → distinct events the buyer holds orders for, most recent order first
func (d *DB) ListEventsByBuyer(ctx context.Context, buyerID models.UserID, limit, offset int) ([]models.Event, int, error) {
	bought := d.Bun.NewSelect().
		TableExpr("orders AS bo").
		ColumnExpr("bo.event_id").
		Where("bo.buyer_id = ?", buyerID)
	latest := d.Bun.NewSelect().
		TableExpr("orders AS lo").
		ColumnExpr("MAX(lo.created_at)").
		Where("lo.event_id = e.id").
		Where("lo.buyer_id = ?", buyerID)

	events := []models.Event{}
	count, err := d.Bun.NewSelect().
		Model(&events).
		Relation("Organizer", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "first_name", "last_name")
		}).
		Relation("Category", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name")
		}).
		Where("e.id IN (?)", bought).
		OrderExpr("(?) DESC", latest).
		OrderExpr("e.id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, database.Translate(err, "list tickets")
	}
	return events, count, nil
}

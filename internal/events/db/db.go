package db

import (
	"context"
	"strings"

	"eventify/internal/apperr"
	"eventify/internal/database"
	"eventify/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// EventFilter narrows a listing. Zero fields do not filter.
type EventFilter struct {
	Title       string
	CategoryID  models.CategoryID
	OrganizerID models.UserID
	ExcludeID   models.EventID
	Limit       int
	Offset      int
}

func withPublicRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Organizer", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "external_auth_id", "username", "first_name", "last_name")
		}).
		Relation("Category", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name")
		})
}

// ---------------- CATEGORIES ----------------

func (d *DB) CreateCategory(ctx context.Context, c *models.Category) error {
	_, err := d.Bun.NewInsert().Model(c).Exec(ctx)
	return database.Translate(err, "category")
}

func (d *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := d.Bun.NewSelect().Model(&categories).OrderExpr("c.name ASC").Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "list categories")
	}
	return categories, nil
}

// GetCategoryByName matches the whole name, ignoring case.
func (d *DB) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := d.Bun.NewSelect().
		Model(&category).
		Where("LOWER(c.name) = LOWER(?)", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "category")
	}
	return &category, nil
}

func (d *DB) GetCategoryByID(ctx context.Context, id models.CategoryID) (*models.Category, error) {
	var category models.Category
	err := d.Bun.NewSelect().Model(&category).Where("c.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "category")
	}
	return &category, nil
}

// ---------------- EVENTS ----------------

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := d.Bun.NewInsert().Model(e).Exec(ctx)
	return database.Translate(err, "event")
}

// GetEventByID loads the event with its organizer and category populated.
func (d *DB) GetEventByID(ctx context.Context, id models.EventID) (*models.Event, error) {
	var event models.Event
	err := withPublicRelations(d.Bun.NewSelect().Model(&event)).
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "event")
	}
	return &event, nil
}

// ListEvents returns one page, newest first, plus the count of every match.
func (d *DB) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, int, error) {
	events := []models.Event{}
	q := withPublicRelations(d.Bun.NewSelect().Model(&events))

	if f.Title != "" {
		q = q.Where(`LOWER(e.title) LIKE ? ESCAPE '\'`, "%"+database.EscapeLike(strings.ToLower(f.Title))+"%")
	}
	if f.CategoryID != "" {
		q = q.Where("e.category_id = ?", f.CategoryID)
	}
	if f.OrganizerID != "" {
		q = q.Where("e.organizer_id = ?", f.OrganizerID)
	}
	if f.ExcludeID != "" {
		q = q.Where("e.id != ?", f.ExcludeID)
	}

	count, err := q.
		OrderExpr("e.created_at DESC").
		OrderExpr("e.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, database.Translate(err, "list events")
	}
	return events, count, nil
}

// UpdateEvent rewrites the editable columns. Organizer and creation time never change.
func (d *DB) UpdateEvent(ctx context.Context, e *models.Event) error {
	res, err := d.Bun.NewUpdate().
		Model(e).
		Column("title", "description", "location", "image_url", "start_date_time",
			"end_date_time", "price", "is_free", "url", "category_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return database.Translate(err, "event")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.NotFound, "event not found")
	}
	return nil
}

// DeleteEvent removes the event together with the orders that reference it.
func (d *DB) DeleteEvent(ctx context.Context, id models.EventID) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Order)(nil)).Where("event_id = ?", id).Exec(ctx); err != nil {
			return database.Translate(err, "delete event orders")
		}
		res, err := tx.NewDelete().Model((*models.Event)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return database.Translate(err, "delete event")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return nil
	})
}

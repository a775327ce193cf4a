package database

import (
	"context"
	"fmt"
	"time"

	"eventify/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema builds the tables straight from the models. It backs SQLite
// development databases and tests; PostgreSQL uses the versioned migrations.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []interface{}{
		(*models.Category)(nil),
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Order)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Event)(nil), "events_created_at_idx", []string{"created_at"}},
		{(*models.Event)(nil), "events_category_id_idx", []string{"category_id"}},
		{(*models.Event)(nil), "events_organizer_id_idx", []string{"organizer_id"}},
		{(*models.Order)(nil), "orders_event_id_idx", []string{"event_id"}},
		{(*models.Order)(nil), "orders_buyer_id_idx", []string{"buyer_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).IfNotExists().Column(idx.columns...).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	// category names are unique regardless of case
	_, err := db.NewCreateIndex().Model((*models.Category)(nil)).Index("categories_name_lower_key").
		Unique().IfNotExists().ColumnExpr("LOWER(name)").Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index categories_name_lower_key: %w", err)
	}
	return nil
}

// SeedCategories inserts the given names, skipping ones that already exist.
func SeedCategories(ctx context.Context, db bun.IDB, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&categories).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

// DefaultCategories mirrors the seed migration for databases built without it.
func DefaultCategories(now time.Time) []models.Category {
	names := []string{"Music", "Tech", "Art", "Sports"}
	out := make([]models.Category, len(names))
	for i, name := range names {
		out[i] = models.Category{
			ID:        models.CategoryID(fmt.Sprintf("0b7f6f3e-6a8c-4d1e-9a36-1f2f4f5a6b%02d", i+1)),
			Name:      name,
			CreatedAt: now,
		}
	}
	return out
}

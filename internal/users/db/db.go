package db

import (
	"context"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/database"
	"eventify/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewInsert().Model(u).Exec(ctx)
	return database.Translate(err, "user")
}

func (d *DB) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().Model(&user).Where("u.external_auth_id = ?", externalID).Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "user")
	}
	return &user, nil
}

func (d *DB) GetUserByID(ctx context.Context, id models.UserID) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().Model(&user).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, database.Translate(err, "user")
	}
	return &user, nil
}

// UpdateUserByExternalID applies patch and returns the stored row.
func (d *DB) UpdateUserByExternalID(ctx context.Context, externalID string, patch models.UserPatch, now time.Time) (*models.User, error) {
	user := &models.User{
		Username:  patch.Username,
		FirstName: patch.FirstName,
		LastName:  patch.LastName,
		Photo:     patch.Photo,
		UpdatedAt: now,
	}
	res, err := d.Bun.NewUpdate().
		Model(user).
		Column("username", "first_name", "last_name", "photo", "updated_at").
		Where("external_auth_id = ?", externalID).
		Exec(ctx)
	if err != nil {
		return nil, database.Translate(err, "user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	return d.GetUserByExternalID(ctx, externalID)
}

// DeleteUserByExternalID removes the user and everything that references it:
// orders placed on the user's events, the user's own orders, then the events.
func (d *DB) DeleteUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := d.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	err = d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		organized := tx.NewSelect().Model((*models.Event)(nil)).Column("id").Where("organizer_id = ?", user.ID)

		if _, err := tx.NewDelete().Model((*models.Order)(nil)).Where("event_id IN (?)", organized).Exec(ctx); err != nil {
			return database.Translate(err, "delete orders of organized events")
		}
		if _, err := tx.NewDelete().Model((*models.Order)(nil)).Where("buyer_id = ?", user.ID).Exec(ctx); err != nil {
			return database.Translate(err, "delete user orders")
		}
		if _, err := tx.NewDelete().Model((*models.Event)(nil)).Where("organizer_id = ?", user.ID).Exec(ctx); err != nil {
			return database.Translate(err, "delete organized events")
		}
		if _, err := tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", user.ID).Exec(ctx); err != nil {
			return database.Translate(err, "delete user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

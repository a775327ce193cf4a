package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserID string

// User mirrors an identity-provider account. Only the identity webhook writes it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             UserID    `bun:"id,pk" json:"id"`
	ExternalAuthID string    `bun:"external_auth_id,unique,notnull" json:"externalAuthId"`
	Email          string    `bun:"email,unique,notnull" json:"email,omitempty"`
	Username       string    `bun:"username,unique,nullzero" json:"username,omitempty"`
	FirstName      string    `bun:"first_name" json:"firstName,omitempty"`
	LastName       string    `bun:"last_name" json:"lastName,omitempty"`
	Photo          string    `bun:"photo,notnull" json:"photo,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// NewUser carries the fields of a freshly created identity-provider account.
type NewUser struct {
	ExternalAuthID string
	Email          string
	Username       string
	FirstName      string
	LastName       string
	Photo          string
}

// UserPatch holds the mutable profile fields sent on user.updated.
type UserPatch struct {
	Username  string
	FirstName string
	LastName  string
	Photo     string
}

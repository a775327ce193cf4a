package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CategoryID string

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID        CategoryID `bun:"id,pk" json:"id"`
	Name      string     `bun:"name,unique,notnull" json:"name"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"createdAt"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=64"`
}

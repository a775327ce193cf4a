package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventID string

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID            EventID    `bun:"id,pk" json:"id"`
	Title         string     `bun:"title,notnull" json:"title"`
	Description   string     `bun:"description" json:"description"`
	Location      string     `bun:"location" json:"location"`
	ImageURL      string     `bun:"image_url,notnull" json:"imageUrl"`
	StartDateTime time.Time  `bun:"start_date_time,notnull" json:"startDateTime"`
	EndDateTime   time.Time  `bun:"end_date_time,notnull" json:"endDateTime"`
	Price         string     `bun:"price" json:"price"`
	IsFree        bool       `bun:"is_free,notnull" json:"isFree"`
	URL           string     `bun:"url" json:"url"`
	CategoryID    CategoryID `bun:"category_id,notnull" json:"categoryId"`
	OrganizerID   UserID     `bun:"organizer_id,notnull" json:"organizerId"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updatedAt"`

	Category  *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
	Organizer *User     `bun:"rel:belongs-to,join:organizer_id=id" json:"organizer,omitempty"`
}

// HasEnded reports whether tickets can no longer be sold at the given instant.
func (e *Event) HasEnded(now time.Time) bool {
	return !e.EndDateTime.IsZero() && e.EndDateTime.Before(now)
}

// EventForm is the create/update payload of an event.
type EventForm struct {
	Title         string     `json:"title" validate:"required,min=3"`
	Description   string     `json:"description" validate:"required,min=3,max=400"`
	Location      string     `json:"location" validate:"required,min=3,max=400"`
	ImageURL      string     `json:"imageUrl" validate:"required"`
	StartDateTime time.Time  `json:"startDateTime" validate:"required"`
	EndDateTime   time.Time  `json:"endDateTime" validate:"required,gtefield=StartDateTime"`
	CategoryID    CategoryID `json:"categoryId" validate:"required"`
	Price         string     `json:"price" validate:"required_if=IsFree false,omitempty,price"`
	IsFree        bool       `json:"isFree"`
	URL           string     `json:"url" validate:"required,url"`
}

// EventQuery drives the home page listing.
type EventQuery struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

type EventPage struct {
	Data       []Event `json:"data"`
	TotalPages int     `json:"totalPages"`
}

type EventDetail struct {
	Event   *Event     `json:"event"`
	Related *EventPage `json:"related"`
}

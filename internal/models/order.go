package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderID string

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID               OrderID   `bun:"id,pk" json:"id"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"createdAt"`
	PaymentSessionID string    `bun:"payment_session_id,unique,notnull" json:"paymentSessionId"`
	TotalAmount      string    `bun:"total_amount" json:"totalAmount"`
	EventID          EventID   `bun:"event_id,notnull" json:"eventId"`
	BuyerID          UserID    `bun:"buyer_id,notnull" json:"buyerId"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Buyer *User  `bun:"rel:belongs-to,join:buyer_id=id" json:"buyer,omitempty"`
}

// CreateOrderParams is what a completed checkout records.
type CreateOrderParams struct {
	PaymentSessionID string
	TotalAmount      string
	EventID          EventID
	BuyerID          UserID
}

// OrderItem is a row of the organizer's orders table.
type OrderItem struct {
	ID          OrderID   `json:"id"`
	TotalAmount string    `json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
	EventTitle  string    `json:"eventTitle"`
	EventID     EventID   `json:"eventId"`
	Buyer       string    `json:"buyer"`
}

// TicketPass is the payload sealed into an order's QR code.
type TicketPass struct {
	OrderID  OrderID   `json:"orderId"`
	EventID  EventID   `json:"eventId"`
	BuyerID  UserID    `json:"buyerId"`
	IssuedAt time.Time `json:"issuedAt"`
}

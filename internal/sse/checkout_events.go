package sse

import (
	"context"
	"sync"

	"eventify/internal/models"
)

// clientBuffer is how many checkouts a slow client may fall behind before drops.
const clientBuffer = 10

// CheckoutEventEmitter fans recorded orders out to the organizers watching an event.
type CheckoutEventEmitter struct {
	mu      sync.RWMutex
	clients map[models.EventID][]chan models.OrderItem
}

func NewCheckoutEventEmitter() *CheckoutEventEmitter {
	return &CheckoutEventEmitter{
		clients: make(map[models.EventID][]chan models.OrderItem),
	}
}

// SubscribeToEvent returns a channel of the event's checkouts. It is closed once ctx is done.
func (e *CheckoutEventEmitter) SubscribeToEvent(ctx context.Context, eventID models.EventID) <-chan models.OrderItem {
	clientChan := make(chan models.OrderItem, clientBuffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

// EmitCheckout broadcasts an order to the event's subscribers without blocking.
func (e *CheckoutEventEmitter) EmitCheckout(order *models.Order) {
	item := models.OrderItem{
		ID:          order.ID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		EventID:     order.EventID,
	}
	if order.Event != nil {
		item.EventTitle = order.Event.Title
	}
	if order.Buyer != nil {
		item.Buyer = order.Buyer.Username
	}

	// The read lock stays held while sending so removeClient cannot close a channel mid-send.
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, clientChan := range e.clients[order.EventID] {
		select {
		case clientChan <- item:
		default:
			// Channel buffer full, skip this client for now
		}
	}
}

func (e *CheckoutEventEmitter) removeClient(eventID models.EventID, clientChan chan models.OrderItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	// Clean up map entry if no more clients
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// GetEventClientCount returns the number of clients currently subscribed to an event
func (e *CheckoutEventEmitter) GetEventClientCount(eventID models.EventID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}

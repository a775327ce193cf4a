package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/cache"
	"eventify/internal/kafka"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

const (
	DefaultTicketsLimit = 3
	FreeSessionPrefix   = "free_"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrderByID(ctx context.Context, id models.OrderID) (*models.Order, error)
	FindOrderForBuyer(ctx context.Context, eventID models.EventID, buyerID models.UserID) (*models.Order, error)
	ListOrdersByEvent(ctx context.Context, eventID models.EventID, search string) ([]models.OrderItem, error)
	ListEventsByBuyer(ctx context.Context, buyerID models.UserID, limit, offset int) ([]models.Event, int, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id models.EventID) (*models.Event, error)
}

type UserLookup interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetUserByID(ctx context.Context, id models.UserID) (*models.User, error)
}

// CheckoutSessions is the part of the Stripe client that opens hosted checkouts.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Locker serializes free checkouts of the same buyer and event.
type Locker interface {
	Lock(ctx context.Context, name, owner string) (bool, error)
	Unlock(ctx context.Context, name, owner string) error
}

// CheckoutFeed is told about every recorded order.
type CheckoutFeed interface {
	EmitCheckout(order *models.Order)
}

// PassCodec seals ticket passes into QR codes and opens them again.
type PassCodec interface {
	GenerateEncryptedQR(pass models.TicketPass) ([]byte, error)
	DecryptPass(code string) (models.TicketPass, error)
}

type OrderService struct {
	DB            DBLayer
	Events        EventLookup
	Users         UserLookup
	Sessions      CheckoutSessions
	Publisher     kafka.Publisher
	Passes        PassCodec
	Locks         Locker
	Feed          CheckoutFeed
	Logger        *logger.Logger
	SiteURL       string
	WebhookSecret string
	Now           func() time.Time
}

func NewOrderService(store DBLayer, events EventLookup, users UserLookup, sessions CheckoutSessions, publisher kafka.Publisher, passes PassCodec, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:        store,
		Events:    events,
		Users:     users,
		Sessions:  sessions,
		Publisher: publisher,
		Passes:    passes,
		Locks:     cache.NopLocker{},
		Logger:    log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckoutResult tells the handler where to send the buyer.
type CheckoutResult struct {
	RedirectURL string        `json:"url"`
	Order       *models.Order `json:"order,omitempty"`
}

// ---------------- CHECKOUT ----------------

// UnitAmount converts a decimal price into minor units. Free events cost nothing.
func UnitAmount(price string, isFree bool) (int64, error) {
	if isFree {
		return 0, nil
	}
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(price, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.Newf(apperr.Invalid, "invalid price %q", price)
	}
	return int64(math.Round(v * 100)), nil
}

// BuildCheckoutSessionParams describes a single-ticket hosted checkout.
func BuildCheckoutSessionParams(event *models.Event, buyerID models.UserID, siteURL string) (*stripe.CheckoutSessionParams, error) {
	amount, err := UnitAmount(event.Price, event.IsFree)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(event.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(siteURL + "/profile"),
		CancelURL:  stripe.String(siteURL + "/"),
	}
	params.AddMetadata("eventId", string(event.ID))
	params.AddMetadata("buyerId", string(buyerID))
	return params, nil
}

// Checkout starts a purchase of one ticket. Paid events go through a hosted
// payment session; free events are recorded immediately.
func (s *OrderService) Checkout(ctx context.Context, externalAuthID string, eventID models.EventID) (*CheckoutResult, error) {
	buyer, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		return nil, apperr.New(apperr.Invalid, "eventId is required")
	}
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HasEnded(s.Now()) {
		return nil, apperr.New(apperr.Invalid, "tickets are no longer available")
	}
	if event.OrganizerID == buyer.ID {
		return nil, apperr.New(apperr.Invalid, "organizers cannot buy tickets to their own event")
	}

	if event.IsFree {
		return s.checkoutFree(ctx, event, buyer)
	}

	if s.Sessions == nil {
		return nil, apperr.New(apperr.Unavailable, "payments are not configured")
	}
	params, err := BuildCheckoutSessionParams(event, buyer.ID, s.SiteURL)
	if err != nil {
		return nil, err
	}
	params.Context = ctx

	session, err := s.Sessions.New(params)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to create checkout session for event %s: %v", event.ID, err))
		return nil, apperr.Wrap(apperr.Unavailable, err, "payment provider unavailable")
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("Created checkout session %s for event %s, buyer %s", session.ID, event.ID, buyer.ID))
	return &CheckoutResult{RedirectURL: session.URL}, nil
}

func (s *OrderService) checkoutFree(ctx context.Context, event *models.Event, buyer *models.User) (*CheckoutResult, error) {
	lockName := fmt.Sprintf("checkout:%s:%s", event.ID, buyer.ID)
	owner := uuid.NewString()
	locked, err := s.Locks.Lock(ctx, lockName, owner)
	if err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Checkout lock unavailable: %v", err))
	} else if !locked {
		return nil, apperr.New(apperr.Conflict, "a checkout for this event is already in progress")
	} else {
		defer func() {
			if err := s.Locks.Unlock(context.WithoutCancel(ctx), lockName, owner); err != nil {
				s.Logger.Warn("ORDER", fmt.Sprintf("Failed to release %s: %v", lockName, err))
			}
		}()
	}

	existing, err := s.DB.FindOrderForBuyer(ctx, event.ID, buyer.ID)
	switch {
	case err == nil:
		s.Logger.Info("ORDER", fmt.Sprintf("Buyer %s already holds order %s for free event %s", buyer.ID, existing.ID, event.ID))
		return &CheckoutResult{RedirectURL: s.SiteURL + "/profile", Order: existing}, nil
	case !apperr.Is(err, apperr.NotFound):
		return nil, err
	}

	order, err := s.CreateOrder(ctx, models.CreateOrderParams{
		PaymentSessionID: FreeSessionPrefix + uuid.NewString(),
		TotalAmount:      "0",
		EventID:          event.ID,
		BuyerID:          buyer.ID,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{RedirectURL: s.SiteURL + "/profile", Order: order}, nil
}

// ---------------- ORDERS ----------------

// CreateOrder records a completed purchase. Both references must exist.
func (s *OrderService) CreateOrder(ctx context.Context, p models.CreateOrderParams) (*models.Order, error) {
	if p.PaymentSessionID == "" {
		return nil, apperr.New(apperr.Invalid, "payment session id is required")
	}
	event, err := s.Events.GetEventByID(ctx, p.EventID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.Wrap(apperr.Invalid, err, "order references an unknown event")
		}
		return nil, err
	}
	buyer, err := s.Users.GetUserByID(ctx, p.BuyerID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.Wrap(apperr.Invalid, err, "order references an unknown buyer")
		}
		return nil, err
	}

	order := &models.Order{
		ID:               models.OrderID(uuid.NewString()),
		CreatedAt:        s.Now(),
		PaymentSessionID: p.PaymentSessionID,
		TotalAmount:      p.TotalAmount,
		EventID:          p.EventID,
		BuyerID:          p.BuyerID,
	}
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.Logger.Info("ORDER", fmt.Sprintf("Order %s created for event %s, buyer %s", order.ID, order.EventID, order.BuyerID))
	if err := s.Publisher.Publish(ctx, kafka.TopicOrders, kafka.OrderCreated, string(order.ID), order); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", kafka.OrderCreated, order.ID, err))
	}
	if s.Feed != nil {
		s.Feed.EmitCheckout(&models.Order{
			ID:          order.ID,
			CreatedAt:   order.CreatedAt,
			TotalAmount: order.TotalAmount,
			EventID:     order.EventID,
			BuyerID:     order.BuyerID,
			Event:       event,
			Buyer:       buyer,
		})
	}
	return order, nil
}

// ListOrdersByEvent lists an event's orders for its organizer.
func (s *OrderService) ListOrdersByEvent(ctx context.Context, externalAuthID string, eventID models.EventID, search string) ([]models.OrderItem, error) {
	event, err := s.AuthorizeOrganizer(ctx, externalAuthID, eventID)
	if err != nil {
		return nil, err
	}
	return s.DB.ListOrdersByEvent(ctx, event.ID, search)
}

// AuthorizeOrganizer loads the event and checks the caller organizes it.
func (s *OrderService) AuthorizeOrganizer(ctx context.Context, externalAuthID string, eventID models.EventID) (*models.Event, error) {
	user, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != user.ID {
		s.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("user %s requested orders of event %s", user.ID, event.ID))
		return nil, apperr.New(apperr.Forbidden, "only the organizer can view orders")
	}
	return event, nil
}

// ListTickets pages through the events the caller holds orders for.
func (s *OrderService) ListTickets(ctx context.Context, externalAuthID string, page, limit int) (*models.EventPage, error) {
	user, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	p := utils.Paginate(page, limit, DefaultTicketsLimit)
	events, count, err := s.DB.ListEventsByBuyer(ctx, user.ID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &models.EventPage{Data: events, TotalPages: utils.TotalPages(count, p.Limit)}, nil
}

// ---------------- PASSES ----------------

// TicketPass renders the QR pass of an order for its buyer.
func (s *OrderService) TicketPass(ctx context.Context, externalAuthID string, orderID models.OrderID) ([]byte, error) {
	if s.Passes == nil {
		return nil, apperr.New(apperr.Unavailable, "ticket passes are not configured")
	}
	user, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != user.ID {
		return nil, apperr.New(apperr.Forbidden, "only the buyer can download this pass")
	}

	png, err := s.Passes.GenerateEncryptedQR(models.TicketPass{
		OrderID:  order.ID,
		EventID:  order.EventID,
		BuyerID:  order.BuyerID,
		IssuedAt: s.Now(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "generate pass")
	}
	return png, nil
}

// VerifyPass opens a scanned pass and returns its order to the event organizer.
func (s *OrderService) VerifyPass(ctx context.Context, externalAuthID, code string) (*models.Order, error) {
	if s.Passes == nil {
		return nil, apperr.New(apperr.Unavailable, "ticket passes are not configured")
	}
	user, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	pass, err := s.Passes.DecryptPass(strings.TrimSpace(code))
	if err != nil {
		s.Logger.LogSecurity("INVALID_PASS", err.Error())
		return nil, apperr.Wrap(apperr.Invalid, err, "invalid ticket pass")
	}

	order, err := s.DB.GetOrderByID(ctx, pass.OrderID)
	if err != nil {
		return nil, err
	}
	if order.EventID != pass.EventID || order.BuyerID != pass.BuyerID {
		return nil, apperr.New(apperr.Invalid, "invalid ticket pass")
	}
	if order.Event == nil || order.Event.OrganizerID != user.ID {
		return nil, apperr.New(apperr.Forbidden, "only the organizer can verify passes")
	}
	return order, nil
}

func (s *OrderService) requireUser(ctx context.Context, externalAuthID string) (*models.User, error) {
	if externalAuthID == "" {
		return nil, apperr.New(apperr.Unauthorized, "authentication required")
	}
	user, err := s.Users.GetUserByExternalID(ctx, externalAuthID)
	if apperr.Is(err, apperr.NotFound) {
		return nil, apperr.Wrap(apperr.Unauthorized, err, "no user is registered for this identity")
	}
	return user, err
}

// FormatMinorUnits renders minor units as a decimal amount with two places.
func FormatMinorUnits(amount int64) string {
	return strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}

var errMissingMetadata = errors.New("checkout session has no eventId or buyerId metadata")

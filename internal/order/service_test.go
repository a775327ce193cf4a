package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/database/dbtest"
	eventdb "eventify/internal/events/db"
	"eventify/internal/kafka"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/order"
	orderdb "eventify/internal/order/db"
	"eventify/internal/sse"
	qr "eventify/internal/tickets/qr_generator"
	userdb "eventify/internal/users/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/uptrace/bun"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, eventType, key string, _ interface{}) error {
	p.types = append(p.types, eventType)
	return nil
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *order.OrderService
	orders   *orderdb.DB
	sessions *MockSessions
	pub      *recordingPublisher
}

func seed(t *testing.T, bunDB *bun.DB) {
	ctx := context.Background()
	_, err := bunDB.NewInsert().Model(&models.Category{ID: "c1", Name: "Music", CreatedAt: fixedNow}).Exec(ctx)
	require.NoError(t, err)

	users := []models.User{
		{ID: "u_org", ExternalAuthID: "user_org", Email: "org@example.com", Username: "organizer", Photo: "p", CreatedAt: fixedNow, UpdatedAt: fixedNow},
		{ID: "u_alice", ExternalAuthID: "user_alice", Email: "alice@example.com", Username: "alice", Photo: "p", CreatedAt: fixedNow, UpdatedAt: fixedNow},
	}
	_, err = bunDB.NewInsert().Model(&users).Exec(ctx)
	require.NoError(t, err)

	start := fixedNow.Add(24 * time.Hour)
	events := []models.Event{
		{ID: "e_paid", Title: "Jazz Night", ImageURL: "i", StartDateTime: start, EndDateTime: start.Add(time.Hour), Price: "19.99", CategoryID: "c1", OrganizerID: "u_org", CreatedAt: fixedNow, UpdatedAt: fixedNow},
		{ID: "e_free", Title: "Open Mic", ImageURL: "i", StartDateTime: start, EndDateTime: start.Add(time.Hour), Price: "", IsFree: true, CategoryID: "c1", OrganizerID: "u_org", CreatedAt: fixedNow, UpdatedAt: fixedNow},
		{ID: "e_past", Title: "Last Year", ImageURL: "i", StartDateTime: fixedNow.Add(-48 * time.Hour), EndDateTime: fixedNow.Add(-47 * time.Hour), Price: "5", CategoryID: "c1", OrganizerID: "u_org", CreatedAt: fixedNow, UpdatedAt: fixedNow},
	}
	_, err = bunDB.NewInsert().Model(&events).Exec(ctx)
	require.NoError(t, err)
}

func newFixture(t *testing.T) *fixture {
	bunDB := dbtest.NewSQLite(t)
	seed(t, bunDB)

	orders := &orderdb.DB{Bun: bunDB}
	sessions := &MockSessions{}
	pub := &recordingPublisher{}
	svc := order.NewOrderService(orders, &eventdb.DB{Bun: bunDB}, &userdb.DB{Bun: bunDB}, sessions, pub, qr.NewQRGenerator("pass-secret"), logger.Nop())
	svc.SiteURL = "https://eventify.example"
	svc.WebhookSecret = "whsec_test"
	svc.Now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, orders: orders, sessions: sessions, pub: pub}
}

func TestUnitAmount(t *testing.T) {
	tests := []struct {
		price  string
		isFree bool
		want   int64
	}{
		{"19.99", false, 1999},
		{"10", false, 1000},
		{"0.1", false, 10},
		{"250", true, 0},
		{"", false, 0},
	}
	for _, tt := range tests {
		got, err := order.UnitAmount(tt.price, tt.isFree)
		require.NoError(t, err, tt.price)
		assert.Equal(t, tt.want, got, tt.price)
	}

	_, err := order.UnitAmount("abc", false)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	_, err = order.UnitAmount("-1", false)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestBuildCheckoutSessionParams(t *testing.T) {
	event := &models.Event{ID: "e1", Title: "Jazz Night", Price: "19.99"}
	params, err := order.BuildCheckoutSessionParams(event, "u1", "https://eventify.example")
	require.NoError(t, err)

	require.Len(t, params.LineItems, 1)
	item := params.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, "usd", *item.PriceData.Currency)
	assert.Equal(t, int64(1999), *item.PriceData.UnitAmount)
	assert.Equal(t, "Jazz Night", *item.PriceData.ProductData.Name)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "https://eventify.example/profile", *params.SuccessURL)
	assert.Equal(t, "https://eventify.example/", *params.CancelURL)
	assert.Equal(t, map[string]string{"eventId": "e1", "buyerId": "u1"}, params.Metadata)

	event.IsFree = true
	params, err = order.BuildCheckoutSessionParams(event, "u1", "https://eventify.example")
	require.NoError(t, err)
	assert.Equal(t, int64(0), *params.LineItems[0].PriceData.UnitAmount)
}

func TestCheckoutPaidEvent(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("New", mock.MatchedBy(func(p *stripe.CheckoutSessionParams) bool {
		return p.Metadata["eventId"] == "e_paid" && p.Metadata["buyerId"] == "u_alice"
	})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil)

	res, err := f.svc.Checkout(context.Background(), "user_alice", "e_paid")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", res.RedirectURL)
	assert.Nil(t, res.Order, "paid checkouts record the order from the webhook")

	_, err = f.orders.FindOrderForBuyer(context.Background(), "e_paid", "u_alice")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCheckoutProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("New", mock.Anything).Return(nil, errors.New("stripe down"))

	_, err := f.svc.Checkout(context.Background(), "user_alice", "e_paid")
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(err))
}

func TestCheckoutFreeEventIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Checkout(context.Background(), "user_alice", "e_free")
	require.NoError(t, err)
	require.NotNil(t, first.Order)
	assert.Equal(t, "https://eventify.example/profile", first.RedirectURL)
	assert.Equal(t, "0", first.Order.TotalAmount)
	assert.Contains(t, first.Order.PaymentSessionID, order.FreeSessionPrefix)

	second, err := f.svc.Checkout(context.Background(), "user_alice", "e_free")
	require.NoError(t, err)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	assert.Equal(t, []string{kafka.OrderCreated}, f.pub.types)
	f.sessions.AssertNotCalled(t, "New", mock.Anything)
}

func TestCheckoutRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, "user_alice", "e_past")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = f.svc.Checkout(ctx, "user_org", "e_paid")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = f.svc.Checkout(ctx, "user_alice", "missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.svc.Checkout(ctx, "user_ghost", "e_paid")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	f.sessions.AssertNotCalled(t, "New", mock.Anything)
}

func TestCreateOrderValidatesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, models.CreateOrderParams{PaymentSessionID: "cs_x", TotalAmount: "1.00", EventID: "missing", BuyerID: "u_alice"})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = f.svc.CreateOrder(ctx, models.CreateOrderParams{PaymentSessionID: "cs_x", TotalAmount: "1.00", EventID: "e_paid", BuyerID: "u_ghost"})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = f.svc.CreateOrder(ctx, models.CreateOrderParams{PaymentSessionID: "cs_x", TotalAmount: "1.00", EventID: "e_paid", BuyerID: "u_alice"})
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, models.CreateOrderParams{PaymentSessionID: "cs_x", TotalAmount: "1.00", EventID: "e_paid", BuyerID: "u_alice"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestListOrdersByEventIsOrganizerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateOrder(ctx, models.CreateOrderParams{PaymentSessionID: "cs_1", TotalAmount: "19.99", EventID: "e_paid", BuyerID: "u_alice"})
	require.NoError(t, err)

	items, err := f.svc.ListOrdersByEvent(ctx, "user_org", "e_paid", "ali")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "alice", items[0].Buyer)

	_, err = f.svc.ListOrdersByEvent(ctx, "user_alice", "e_paid", "")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestListTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Checkout(ctx, "user_alice", "e_free")
	require.NoError(t, err)

	page, err := f.svc.ListTickets(ctx, "user_alice", 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, models.EventID("e_free"), page.Data[0].ID)
	assert.Equal(t, 1, page.TotalPages)
}

func TestTicketPassRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, "user_alice", "e_free")
	require.NoError(t, err)

	png, err := f.svc.TicketPass(ctx, "user_alice", res.Order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = f.svc.TicketPass(ctx, "user_org", res.Order.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	code, err := qr.NewQRGenerator("pass-secret").GeneratePassCode(models.TicketPass{
		OrderID: res.Order.ID, EventID: "e_free", BuyerID: "u_alice", IssuedAt: fixedNow,
	})
	require.NoError(t, err)

	verified, err := f.svc.VerifyPass(ctx, "user_org", code)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, verified.ID)

	_, err = f.svc.VerifyPass(ctx, "user_alice", code)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = f.svc.VerifyPass(ctx, "user_org", "garbage")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "19.99", order.FormatMinorUnits(1999))
	assert.Equal(t, "0.00", order.FormatMinorUnits(0))
	assert.Equal(t, "100.50", order.FormatMinorUnits(10050))
}

func TestCheckoutFeedReceivesOrders(t *testing.T) {
	f := newFixture(t)
	feed := sse.NewCheckoutEventEmitter()
	f.svc.Feed = feed

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := feed.SubscribeToEvent(ctx, "e_free")

	_, err := f.svc.Checkout(context.Background(), "user_alice", "e_free")
	require.NoError(t, err)

	select {
	case item := <-stream:
		assert.Equal(t, "alice", item.Buyer)
		assert.Equal(t, "Open Mic", item.EventTitle)
	case <-time.After(time.Second):
		t.Fatal("no checkout on the feed")
	}
}

func TestFreeCheckoutLockContention(t *testing.T) {
	f := newFixture(t)
	f.svc.Locks = busyLocker{}

	_, err := f.svc.Checkout(context.Background(), "user_alice", "e_free")
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string, string) (bool, error) { return false, nil }

func (busyLocker) Unlock(context.Context, string, string) error { return nil }

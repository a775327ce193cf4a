package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"eventify/internal/apperr"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/order"
)

// MaxBatchEvents bounds a batch request.
const MaxBatchEvents = 50

type DBLayer interface {
	GetOrderAmountsByEventIDs(ctx context.Context, eventIDs []models.EventID) ([]OrderAmount, error)
}

// Organizers is satisfied by order.OrderService.
type Organizers interface {
	AuthorizeOrganizer(ctx context.Context, externalAuthID string, eventID models.EventID) (*models.Event, error)
}

type Service struct {
	DB         DBLayer
	Organizers Organizers
	Logger     *logger.Logger
}

func NewService(store DBLayer, organizers Organizers, log *logger.Logger) *Service {
	return &Service{DB: store, Organizers: organizers, Logger: log}
}

// EventAnalytics represents aggregated sales of one or more events
type EventAnalytics struct {
	EventIDs     []models.EventID    `json:"eventIds"`
	TotalRevenue string              `json:"totalRevenue"`
	TotalOrders  int                 `json:"totalOrders"`
	FreeOrders   int                 `json:"freeOrders"`
	DailySales   []DailySalesMetrics `json:"dailySales"`
}

// DailySalesMetrics contains metrics for a single UTC day
type DailySalesMetrics struct {
	Date    string `json:"date"`
	Revenue string `json:"revenue"`
	Orders  int    `json:"orders"`
}

// GetEventAnalytics returns the sales of an event to its organizer.
func (s *Service) GetEventAnalytics(ctx context.Context, externalAuthID string, eventID models.EventID) (*EventAnalytics, error) {
	return s.GetBatchEventAnalytics(ctx, externalAuthID, []models.EventID{eventID})
}

// GetBatchEventAnalytics returns the combined sales of several events, all organized by the caller.
func (s *Service) GetBatchEventAnalytics(ctx context.Context, externalAuthID string, eventIDs []models.EventID) (*EventAnalytics, error) {
	ids := dedupe(eventIDs)
	if len(ids) == 0 {
		return nil, apperr.New(apperr.Invalid, "at least one event id is required")
	}
	if len(ids) > MaxBatchEvents {
		return nil, apperr.Newf(apperr.Invalid, "at most %d events per request", MaxBatchEvents)
	}

	for _, id := range ids {
		if _, err := s.Organizers.AuthorizeOrganizer(ctx, externalAuthID, id); err != nil {
			return nil, err
		}
	}

	rows, err := s.DB.GetOrderAmountsByEventIDs(ctx, ids)
	if err != nil {
		s.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to load orders for %d events: %v", len(ids), err))
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load orders")
	}
	return summarize(ids, rows, s.Logger), nil
}

func summarize(ids []models.EventID, rows []OrderAmount, log *logger.Logger) *EventAnalytics {
	var total int64
	daily := make(map[string]*dailyTotals)
	result := &EventAnalytics{EventIDs: ids, DailySales: []DailySalesMetrics{}}

	for _, row := range rows {
		cents, err := minorUnits(row.TotalAmount)
		if err != nil {
			log.Warn("ANALYTICS", fmt.Sprintf("Skipping unparsable amount %q of session %s", row.TotalAmount, row.PaymentSessionID))
			cents = 0
		}

		result.TotalOrders++
		if strings.HasPrefix(row.PaymentSessionID, order.FreeSessionPrefix) {
			result.FreeOrders++
		}
		total += cents

		day := row.CreatedAt.UTC().Format("2006-01-02")
		d, ok := daily[day]
		if !ok {
			d = &dailyTotals{}
			daily[day] = d
		}
		d.revenue += cents
		d.orders++
	}

	for day, d := range daily {
		result.DailySales = append(result.DailySales, DailySalesMetrics{
			Date:    day,
			Revenue: order.FormatMinorUnits(d.revenue),
			Orders:  d.orders,
		})
	}
	sort.Slice(result.DailySales, func(i, j int) bool {
		return result.DailySales[i].Date < result.DailySales[j].Date
	})
	result.TotalRevenue = order.FormatMinorUnits(total)
	return result
}

type dailyTotals struct {
	revenue int64
	orders  int
}

// minorUnits parses a stored decimal amount into cents.
func minorUnits(amount string) (int64, error) {
	if amount == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(v * 100)), nil
}

func dedupe(ids []models.EventID) []models.EventID {
	seen := make(map[models.EventID]bool, len(ids))
	out := make([]models.EventID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

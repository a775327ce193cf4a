package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/events/db"
	"eventify/internal/kafka"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"
	"eventify/internal/validation"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit    = 6
	DefaultRelatedLimit = 3
)

type DBLayer interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	GetCategoryByID(ctx context.Context, id models.CategoryID) (*models.Category, error)
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEventByID(ctx context.Context, id models.EventID) (*models.Event, error)
	ListEvents(ctx context.Context, f db.EventFilter) ([]models.Event, int, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id models.EventID) error
}

type UserLookup interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

type CategoryCache interface {
	GetCategories(ctx context.Context) ([]models.Category, bool, error)
	SetCategories(ctx context.Context, categories []models.Category) error
	InvalidateCategories(ctx context.Context) error
}

type EventService struct {
	DB        DBLayer
	Users     UserLookup
	Cache     CategoryCache
	Publisher kafka.Publisher
	Logger    *logger.Logger
	Validator *validation.Validator
	Now       func() time.Time
}

func NewEventService(store DBLayer, users UserLookup, cache CategoryCache, publisher kafka.Publisher, log *logger.Logger) *EventService {
	return &EventService{
		DB:        store,
		Users:     users,
		Cache:     cache,
		Publisher: publisher,
		Logger:    log,
		Validator: validation.New(),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// ---------------- QUERIES ----------------

// ListEvents filters by title substring and exact category name, both ignoring case.
// An unknown category yields an empty page rather than an error.
func (s *EventService) ListEvents(ctx context.Context, q models.EventQuery) (*models.EventPage, error) {
	p := utils.Paginate(q.Page, q.Limit, DefaultPageLimit)
	filter := db.EventFilter{
		Title:  strings.TrimSpace(q.Query),
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	if name := strings.TrimSpace(q.Category); name != "" {
		category, err := s.DB.GetCategoryByName(ctx, name)
		if apperr.Is(err, apperr.NotFound) {
			return &models.EventPage{Data: []models.Event{}, TotalPages: 0}, nil
		}
		if err != nil {
			return nil, err
		}
		filter.CategoryID = category.ID
	}

	return s.listPage(ctx, filter)
}

// ListEventsByOrganizer lists the events organized by the given identity.
func (s *EventService) ListEventsByOrganizer(ctx context.Context, externalAuthID string, page, limit int) (*models.EventPage, error) {
	user, err := s.Users.GetUserByExternalID(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	p := utils.Paginate(page, limit, DefaultPageLimit)
	return s.listPage(ctx, db.EventFilter{OrganizerID: user.ID, Limit: p.Limit, Offset: p.Offset})
}

// ListRelatedEvents lists events sharing a category, excluding one event.
func (s *EventService) ListRelatedEvents(ctx context.Context, categoryID models.CategoryID, exclude models.EventID, page, limit int) (*models.EventPage, error) {
	p := utils.Paginate(page, limit, DefaultRelatedLimit)
	return s.listPage(ctx, db.EventFilter{CategoryID: categoryID, ExcludeID: exclude, Limit: p.Limit, Offset: p.Offset})
}

func (s *EventService) listPage(ctx context.Context, f db.EventFilter) (*models.EventPage, error) {
	events, count, err := s.DB.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	return &models.EventPage{Data: events, TotalPages: utils.TotalPages(count, f.Limit)}, nil
}

func (s *EventService) GetEvent(ctx context.Context, id models.EventID) (*models.Event, error) {
	return s.DB.GetEventByID(ctx, id)
}

// GetEventDetail loads an event with a page of related events from its category.
func (s *EventService) GetEventDetail(ctx context.Context, id models.EventID, relatedPage int) (*models.EventDetail, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	related, err := s.ListRelatedEvents(ctx, event.CategoryID, event.ID, relatedPage, DefaultRelatedLimit)
	if err != nil {
		return nil, err
	}
	return &models.EventDetail{Event: event, Related: related}, nil
}

// ---------------- MUTATIONS ----------------

func (s *EventService) CreateEvent(ctx context.Context, externalAuthID string, form models.EventForm) (*models.Event, error) {
	organizer, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, err
	}
	if err := s.validateForm(ctx, form); err != nil {
		return nil, err
	}

	now := s.Now()
	event := &models.Event{
		ID:          models.EventID(uuid.NewString()),
		OrganizerID: organizer.ID,
		CreatedAt:   now,
	}
	applyForm(event, form, now)

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s created by %s", event.ID, organizer.ID))
	s.publish(ctx, kafka.EventCreated, event)
	return event, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, externalAuthID string, id models.EventID, form models.EventForm) (*models.Event, error) {
	_, event, err := s.authorizeOrganizer(ctx, externalAuthID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateForm(ctx, form); err != nil {
		return nil, err
	}

	applyForm(event, form, s.Now())
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s updated", event.ID))
	s.publish(ctx, kafka.EventUpdated, event)
	return s.DB.GetEventByID(ctx, event.ID)
}

func (s *EventService) DeleteEvent(ctx context.Context, externalAuthID string, id models.EventID) error {
	_, event, err := s.authorizeOrganizer(ctx, externalAuthID, id)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteEvent(ctx, event.ID); err != nil {
		return err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s deleted", event.ID))
	s.publish(ctx, kafka.EventDeleted, map[string]models.EventID{"id": event.ID})
	return nil
}

// authorizeOrganizer loads the caller and the event and checks the caller organizes it.
func (s *EventService) authorizeOrganizer(ctx context.Context, externalAuthID string, id models.EventID) (*models.User, *models.Event, error) {
	user, err := s.requireUser(ctx, externalAuthID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.DB.GetEventByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if event.OrganizerID != user.ID {
		s.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("user %s is not the organizer of event %s", user.ID, event.ID))
		return nil, nil, apperr.New(apperr.Forbidden, "only the organizer can modify this event")
	}
	return user, event, nil
}

func (s *EventService) requireUser(ctx context.Context, externalAuthID string) (*models.User, error) {
	if externalAuthID == "" {
		return nil, apperr.New(apperr.Unauthorized, "authentication required")
	}
	user, err := s.Users.GetUserByExternalID(ctx, externalAuthID)
	if apperr.Is(err, apperr.NotFound) {
		return nil, apperr.Wrap(apperr.Unauthorized, err, "no user is registered for this identity")
	}
	return user, err
}

func (s *EventService) validateForm(ctx context.Context, form models.EventForm) error {
	if err := s.Validator.Struct(form); err != nil {
		return err
	}
	_, err := s.DB.GetCategoryByID(ctx, form.CategoryID)
	if apperr.Is(err, apperr.NotFound) {
		return apperr.Wrap(apperr.Invalid, err, "categoryId does not reference a category")
	}
	return err
}

func applyForm(e *models.Event, form models.EventForm, now time.Time) {
	e.Title = strings.TrimSpace(form.Title)
	e.Description = form.Description
	e.Location = form.Location
	e.ImageURL = form.ImageURL
	e.StartDateTime = form.StartDateTime.UTC()
	e.EndDateTime = form.EndDateTime.UTC()
	e.Price = form.Price
	e.IsFree = form.IsFree
	if form.IsFree {
		e.Price = ""
	}
	e.URL = form.URL
	e.CategoryID = form.CategoryID
	e.UpdatedAt = now
}

func (s *EventService) publish(ctx context.Context, eventType string, data interface{}) {
	key := ""
	switch v := data.(type) {
	case *models.Event:
		key = string(v.ID)
	case map[string]models.EventID:
		key = string(v["id"])
	}
	if err := s.Publisher.Publish(ctx, kafka.TopicEvents, eventType, key, data); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, key, err))
	}
}

// ---------------- CATEGORIES ----------------

// ListCategories serves from the cache and refills it on a miss.
func (s *EventService) ListCategories(ctx context.Context) ([]models.Category, error) {
	if categories, ok, err := s.Cache.GetCategories(ctx); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Category cache read failed: %v", err))
	} else if ok {
		return categories, nil
	}

	categories, err := s.DB.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetCategories(ctx, categories); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Category cache write failed: %v", err))
	}
	return categories, nil
}

func (s *EventService) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.Validator.Struct(req); err != nil {
		return nil, err
	}

	category := &models.Category{
		ID:        models.CategoryID(uuid.NewString()),
		Name:      req.Name,
		CreatedAt: s.Now(),
	}
	if err := s.DB.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	if err := s.Cache.InvalidateCategories(ctx); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Category cache invalidation failed: %v", err))
	}
	return category, nil
}

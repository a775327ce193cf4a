package events_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"eventify/internal/apperr"
	"eventify/internal/auth"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds event and category payloads.
const maxBodyBytes = 1 << 20

type EventService interface {
	ListEvents(ctx context.Context, q models.EventQuery) (*models.EventPage, error)
	GetEventDetail(ctx context.Context, id models.EventID, relatedPage int) (*models.EventDetail, error)
	CreateEvent(ctx context.Context, externalAuthID string, form models.EventForm) (*models.Event, error)
	UpdateEvent(ctx context.Context, externalAuthID string, id models.EventID, form models.EventForm) (*models.Event, error)
	DeleteEvent(ctx context.Context, externalAuthID string, id models.EventID) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error)
}

type Handler struct {
	Events EventService
	Logger *logger.Logger
}

func NewHandler(events EventService, log *logger.Logger) *Handler {
	return &Handler{Events: events, Logger: log}
}

// Routes mounts the public read endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/events", h.ListEvents)
	r.Get("/api/events/{id}", h.GetEvent)
	r.Get("/api/categories", h.ListCategories)
}

// ProtectedRoutes mounts the endpoints that need an authenticated caller.
func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Post("/api/events", h.CreateEvent)
	r.Put("/api/events/{id}", h.UpdateEvent)
	r.Delete("/api/events/{id}", h.DeleteEvent)
	r.Post("/api/categories", h.CreateCategory)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Events.ListEvents(r.Context(), models.EventQuery{
		Query:    q.Get("query"),
		Category: q.Get("category"),
		Page:     utils.QueryInt(q.Get("page")),
		Limit:    utils.QueryInt(q.Get("limit")),
	})
	if err != nil {
		h.fail(w, "ListEvents", err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := models.EventID(chi.URLParam(r, "id"))
	detail, err := h.Events.GetEventDetail(r.Context(), id, utils.QueryInt(r.URL.Query().Get("relatedPage")))
	if err != nil {
		h.fail(w, "GetEvent", err)
		return
	}
	h.respond(w, http.StatusOK, detail)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var form models.EventForm
	if err := decode(w, r, &form); err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}

	event, err := h.Events.CreateEvent(r.Context(), auth.UserID(r.Context()), form)
	if err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateEvent: created %s", event.ID))
	h.respond(w, http.StatusCreated, event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := models.EventID(chi.URLParam(r, "id"))
	var form models.EventForm
	if err := decode(w, r, &form); err != nil {
		h.fail(w, "UpdateEvent", err)
		return
	}

	event, err := h.Events.UpdateEvent(r.Context(), auth.UserID(r.Context()), id, form)
	if err != nil {
		h.fail(w, "UpdateEvent", err)
		return
	}
	h.respond(w, http.StatusOK, event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := models.EventID(chi.URLParam(r, "id"))
	if err := h.Events.DeleteEvent(r.Context(), auth.UserID(r.Context()), id); err != nil {
		h.fail(w, "DeleteEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Events.ListCategories(r.Context())
	if err != nil {
		h.fail(w, "ListCategories", err)
		return
	}
	h.respond(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, "CreateCategory", err)
		return
	}

	category, err := h.Events.CreateCategory(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateCategory", err)
		return
	}
	h.respond(w, http.StatusCreated, category)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.Invalid, err, "invalid request body")
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
}

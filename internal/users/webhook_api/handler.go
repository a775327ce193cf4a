package webhook_api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"eventify/internal/apperr"
	"eventify/internal/logger"
	"eventify/internal/models"
	"eventify/internal/utils"
)

const (
	maxPayloadBytes = 1 << 20
	dedupeSource    = "clerk"
)

// SignatureVerifier is satisfied by *svix.Webhook.
type SignatureVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

type Deduper interface {
	Claim(ctx context.Context, source, deliveryID string) (bool, error)
	Release(ctx context.Context, source, deliveryID string) error
}

type UserService interface {
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, externalAuthID string, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, externalAuthID string) (*models.User, error)
}

type Handler struct {
	Users    UserService
	Verifier SignatureVerifier
	Deduper  Deduper
	Logger   *logger.Logger
}

func NewHandler(users UserService, verifier SignatureVerifier, deduper Deduper, log *logger.Logger) *Handler {
	return &Handler{Users: users, Verifier: verifier, Deduper: deduper, Logger: log}
}

type webhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUser struct {
	ID                    string         `json:"id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	Username              *string        `json:"username"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              string         `json:"image_url"`
}

// primaryEmail falls back to the first address when none is flagged primary.
func (u clerkUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type successBody struct {
	Message string       `json:"message"`
	User    *models.User `json:"user,omitempty"`
}

// HandleClerkWebhook verifies a svix-signed delivery and syncs the user it describes.
func (h *Handler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	svixID := r.Header.Get("svix-id")
	if svixID == "" || r.Header.Get("svix-timestamp") == "" || r.Header.Get("svix-signature") == "" {
		h.Logger.LogWebhook("CLERK", "-", "missing svix headers")
		http.Error(w, "Error: Missing Svix headers", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.Logger.LogWebhook("CLERK", "-", fmt.Sprintf("failed to read body: %v", err))
		http.Error(w, "Error: Verification error", http.StatusBadRequest)
		return
	}

	if err := h.Verifier.Verify(payload, r.Header); err != nil {
		h.Logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("clerk delivery %s rejected: %v", svixID, err))
		http.Error(w, "Error: Verification error", http.StatusBadRequest)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.Logger.LogWebhook("CLERK", "-", fmt.Sprintf("invalid payload: %v", err))
		http.Error(w, "Error: invalid payload", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case "user.created", "user.updated", "user.deleted":
	default:
		h.Logger.LogWebhook("CLERK", evt.Type, "ignored")
		_, _ = w.Write([]byte("Webhook received"))
		return
	}

	claimed, err := h.Deduper.Claim(r.Context(), dedupeSource, svixID)
	if err != nil {
		// Without Redis a duplicate delivery is processed again.
		h.Logger.Warn("WEBHOOK", fmt.Sprintf("dedupe unavailable for %s: %v", svixID, err))
		claimed = true
	}
	if !claimed {
		h.Logger.LogWebhook("CLERK", evt.Type, fmt.Sprintf("delivery %s already processed", svixID))
		h.ok(w, nil)
		return
	}

	user, err := h.dispatch(r.Context(), evt)
	if err != nil {
		if rerr := h.Deduper.Release(r.Context(), dedupeSource, svixID); rerr != nil {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("failed to release %s: %v", svixID, rerr))
		}
		h.Logger.LogWebhook("CLERK", evt.Type, fmt.Sprintf("delivery %s failed: %v", svixID, err))
		http.Error(w, "Error: "+apperr.PublicMessage(err), apperr.KindOf(err).HTTPStatus())
		return
	}

	h.Logger.LogWebhook("CLERK", evt.Type, fmt.Sprintf("delivery %s processed", svixID))
	h.ok(w, user)
}

func (h *Handler) dispatch(ctx context.Context, evt webhookEvent) (*models.User, error) {
	var data clerkUser
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		return nil, apperr.Wrap(apperr.Invalid, err, "invalid user payload")
	}

	switch evt.Type {
	case "user.created":
		return h.Users.CreateUser(ctx, models.NewUser{
			ExternalAuthID: data.ID,
			Email:          data.primaryEmail(),
			Username:       deref(data.Username),
			FirstName:      deref(data.FirstName),
			LastName:       deref(data.LastName),
			Photo:          data.ImageURL,
		})
	case "user.updated":
		return h.Users.UpdateUser(ctx, data.ID, models.UserPatch{
			Username:  deref(data.Username),
			FirstName: deref(data.FirstName),
			LastName:  deref(data.LastName),
			Photo:     data.ImageURL,
		})
	default:
		return h.Users.DeleteUser(ctx, data.ID)
	}
}

func (h *Handler) ok(w http.ResponseWriter, user *models.User) {
	if err := utils.WriteJSON(w, http.StatusOK, successBody{Message: "OK", User: user}); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("failed to encode response: %v", err))
	}
}

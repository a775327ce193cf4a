package webhook_api

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"eventify/internal/apperr"
	"eventify/internal/cache"
	"eventify/internal/logger"
	"eventify/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, externalAuthID string, patch models.UserPatch) (*models.User, error) {
	args := m.Called(externalAuthID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, externalAuthID string) (*models.User, error) {
	args := m.Called(externalAuthID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("eventify-webhook-test-secret"))

const createdPayload = `{
  "type": "user.created",
  "data": {
    "id": "user_alice",
    "email_addresses": [
      {"id": "idn_2", "email_address": "other@example.com"},
      {"id": "idn_1", "email_address": "alice@example.com"}
    ],
    "primary_email_address_id": "idn_1",
    "username": "alice",
    "first_name": "Alice",
    "last_name": null,
    "image_url": "https://img.example/alice.png"
  }
}`

func newHandler(t *testing.T, users UserService) (*Handler, *svix.Webhook, *miniredis.Miniredis) {
	wh, err := svix.NewWebhook(testSecret)
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return NewHandler(users, wh, cache.NewDeduper(client, 24*time.Hour), logger.Nop()), wh, mr
}

func signedRequest(t *testing.T, wh *svix.Webhook, msgID, payload string) *http.Request {
	now := time.Now()
	sig, err := wh.Sign(msgID, now, []byte(payload))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/clerk", bytes.NewBufferString(payload))
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func TestMissingHeaders(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	for _, header := range []string{"svix-id", "svix-timestamp", "svix-signature"} {
		req := signedRequest(t, wh, "msg_1", createdPayload)
		req.Header.Del(header)
		rec := httptest.NewRecorder()
		h.HandleClerkWebhook(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, header)
		assert.Contains(t, rec.Body.String(), "Error: Missing Svix headers")
	}
	users.AssertNotCalled(t, "CreateUser", mock.Anything)
}

func TestBadSignature(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	req := signedRequest(t, wh, "msg_1", createdPayload)
	req.Header.Set("svix-signature", "v1,bm90IGEgc2lnbmF0dXJl")
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error: Verification error")
	users.AssertNotCalled(t, "CreateUser", mock.Anything)
}

func TestUserCreated(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	users.On("CreateUser", models.NewUser{
		ExternalAuthID: "user_alice",
		Email:          "alice@example.com",
		Username:       "alice",
		FirstName:      "Alice",
		Photo:          "https://img.example/alice.png",
	}).Return(&models.User{ID: "u_1", ExternalAuthID: "user_alice"}, nil).Once()

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_1", createdPayload))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"OK"`)
	assert.Contains(t, rec.Body.String(), `"u_1"`)

	// A replay of the same delivery is acknowledged without processing.
	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_1", createdPayload))
	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertNumberOfCalls(t, "CreateUser", 1)
}

func TestFailedDeliveryIsReleased(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	users.On("CreateUser", mock.Anything).Return(nil, apperr.Wrap(apperr.Internal, assert.AnError, "failed to link identity metadata")).Once()
	users.On("CreateUser", mock.Anything).Return(&models.User{ID: "u_1"}, nil).Once()

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_2", createdPayload))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_2", createdPayload))
	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertNumberOfCalls(t, "CreateUser", 2)
}

func TestUserUpdatedAndDeleted(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	users.On("UpdateUser", "user_alice", models.UserPatch{Username: "al", FirstName: "Al", LastName: "L", Photo: "p"}).
		Return(&models.User{ID: "u_1"}, nil)
	users.On("DeleteUser", "user_alice").Return(&models.User{ID: "u_1"}, nil)

	updated := `{"type":"user.updated","data":{"id":"user_alice","username":"al","first_name":"Al","last_name":"L","image_url":"p"}}`
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_3", updated))
	assert.Equal(t, http.StatusOK, rec.Code)

	deleted := `{"type":"user.deleted","data":{"id":"user_alice","deleted":true}}`
	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_4", deleted))
	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestUnknownEventType(t *testing.T) {
	users := &MockUserService{}
	h, wh, _ := newHandler(t, users)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, wh, "msg_5", `{"type":"session.created","data":{}}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Webhook received", rec.Body.String())
}

func TestPrimaryEmailFallback(t *testing.T) {
	u := clerkUser{EmailAddresses: []emailAddress{{ID: "a", EmailAddress: "first@example.com"}}}
	assert.Equal(t, "first@example.com", u.primaryEmail())
	assert.Equal(t, "", clerkUser{}.primaryEmail())
}

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventify/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInternalUserID(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	var gotBody metadataRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "sk_test", logger.Nop())
	require.NoError(t, c.SetInternalUserID(context.Background(), "user_123", "u_1"))

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/v1/users/user_123/metadata", gotPath)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "u_1", gotBody.PublicMetadata["userId"])
}

func TestSetInternalUserIDFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"code":"resource_not_found"}]}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", logger.Nop())
	err := c.SetInternalUserID(context.Background(), "user_404", "u_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSetInternalUserIDWithoutSecretSkips(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", logger.Nop())
	assert.NoError(t, c.SetInternalUserID(context.Background(), "user_123", "u_1"))
	assert.False(t, called)
}

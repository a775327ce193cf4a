// Package identity talks to the identity provider's REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eventify/internal/logger"
	"eventify/internal/models"
)

// Client writes the internal user id back into the provider's public metadata.
type Client struct {
	BaseURL   string
	SecretKey string
	HTTP      *http.Client
	Logger    *logger.Logger
}

func NewClient(baseURL, secretKey string, log *logger.Logger) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Logger:    log,
	}
}

type metadataRequest struct {
	PublicMetadata map[string]string `json:"public_metadata"`
}

// SetInternalUserID stores userId in the public metadata of the given account.
// Without a secret key the call is skipped.
func (c *Client) SetInternalUserID(ctx context.Context, externalAuthID string, userID models.UserID) error {
	if c.SecretKey == "" {
		c.Logger.Warn("IDENTITY", fmt.Sprintf("CLERK_SECRET_KEY not set, skipping metadata update for %s", externalAuthID))
		return nil
	}

	body, err := json.Marshal(metadataRequest{PublicMetadata: map[string]string{"userId": string(userID)}})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/metadata", c.BaseURL, url.PathEscape(externalAuthID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.Logger.Warn("IDENTITY", fmt.Sprintf("Error closing response body: %v", cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("metadata update for %s failed, status: %s, body: %s", externalAuthID, resp.Status, string(bodyBytes))
	}

	c.Logger.Info("IDENTITY", fmt.Sprintf("Linked %s to user %s", externalAuthID, userID))
	return nil
}

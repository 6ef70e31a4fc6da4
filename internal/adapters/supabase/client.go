// Package supabase is the outbound adapter for the identity backend,
// which owns the authoritative existence of accounts.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

type Config struct {
	BaseURL    string
	ServiceKey string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		logger:     logger.With("module", "supabase", "layer", "adapter"),
	}
}

type userDoc struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listUsersDoc struct {
	Users []userDoc `json:"users"`
}

func (c *Client) IdentityExists(ctx context.Context, email string) (bool, error) {
	query := url.Values{}
	query.Set("filter", email)
	endpoint := c.baseURL + "/auth/v1/admin/users?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build identity lookup request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read identity backend response: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: identity backend returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	// The admin listing may come back as a bare array or wrapped in a
	// users object depending on backend version.
	var users []userDoc
	if err := json.Unmarshal(body, &users); err != nil {
		var wrapped listUsersDoc
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return false, fmt.Errorf("%w: decode identity listing: %v", domain.ErrUpstreamUnavailable, err)
		}
		users = wrapped.Users
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, user := range users {
		if strings.ToLower(user.Email) == normalized {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) CreateIdentity(ctx context.Context, email, credential string, meta domain.IdentityMetadata) error {
	payload, err := json.Marshal(map[string]any{
		"email":         email,
		"password":      credential,
		"email_confirm": true,
		"user_metadata": meta,
	})
	if err != nil {
		return fmt.Errorf("encode identity payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/admin/users", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build identity create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(string(body)), "already"):
		// The backend reports duplicate registrations as 422 with an
		// "already registered" message rather than a clean 409.
		return domain.ErrConflict
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: identity backend returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		c.logger.ErrorContext(ctx, "identity creation rejected",
			"operation", "create_identity",
			"outcome", "failure",
			"status_code", resp.StatusCode,
			"email", domain.RedactEmail(email),
		)
		return fmt.Errorf("identity backend rejected creation: status %d", resp.StatusCode)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Accept", "application/json")
}

// Package wordpress is the best-effort adapter for the secondary
// profile store. Absence of a profile implies nothing about access, and
// failures here never block provisioning.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
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
	BaseURL  string
	Username string
	Password string
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	authHeader string
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(cfg.BaseURL, "/") + "/wp-json/wp/v2",
		authHeader: "Basic " + credentials,
		logger:     logger.With("module", "wordpress", "layer", "adapter"),
	}
}

type profileDoc struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

// UpsertProfile ensures a profile record exists for the email, creating
// a subscriber-role account when absent.
func (c *Client) UpsertProfile(ctx context.Context, email, firstName, lastName string) error {
	exists, err := c.profileExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// The profile store requires its own throwaway credential; nothing
	// ever authenticates against it through this service.
	credential, err := domain.GenerateCredential()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"username":   strings.SplitN(email, "@", 2)[0],
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"password":   credential,
		"roles":      []string{"subscriber"},
	})
	if err != nil {
		return fmt.Errorf("encode profile payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/users", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build profile create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile store unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile store rejected creation: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) profileExists(ctx context.Context, email string) (bool, error) {
	query := url.Values{}
	query.Set("search", email)
	query.Set("context", "edit")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users?"+query.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build profile lookup request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("profile store unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read profile store response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("profile store returned %d", resp.StatusCode)
	}

	var docs []profileDoc
	if err := json.Unmarshal(body, &docs); err != nil {
		return false, fmt.Errorf("decode profile listing: %w", err)
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, doc := range docs {
		if strings.ToLower(doc.Email) == normalized {
			return true, nil
		}
	}
	return false, nil
}

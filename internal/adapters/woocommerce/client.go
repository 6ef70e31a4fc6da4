// Package woocommerce is the outbound adapter for the order backend.
// Every call re-queries the store; this service keeps no order cache.
package woocommerce

import (
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

const listPageSize = 100

type Config struct {
	// BaseURL is the store root, e.g. https://shop.example.com. The
	// client appends the REST path itself.
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
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
	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.ConsumerKey + ":" + cfg.ConsumerSecret))
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimRight(cfg.BaseURL, "/") + "/wp-json/wc/v3",
		authHeader: "Basic " + credentials,
		logger:     logger.With("module", "woocommerce", "layer", "adapter"),
	}
}

// flexID tolerates the store sending identifiers as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		*f = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type orderDoc struct {
	ID      flexID `json:"id"`
	Status  string `json:"status"`
	Billing struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Company   string `json:"company"`
	} `json:"billing"`
	LineItems []struct {
		ProductID   flexID `json:"product_id"`
		SKU         string `json:"sku"`
		VariationID flexID `json:"variation_id"`
		Quantity    int    `json:"quantity"`
	} `json:"line_items"`
	DateCreated string `json:"date_created"`
}

func (d orderDoc) toDomain() domain.Order {
	order := domain.Order{
		ID:     string(d.ID),
		Status: domain.OrderStatus(d.Status),
		Billing: domain.Billing{
			Email:     strings.ToLower(strings.TrimSpace(d.Billing.Email)),
			FirstName: d.Billing.FirstName,
			LastName:  d.Billing.LastName,
			Phone:     d.Billing.Phone,
			Company:   d.Billing.Company,
		},
	}
	for _, item := range d.LineItems {
		order.LineItems = append(order.LineItems, domain.LineItem{
			ProductID:   string(item.ProductID),
			SKU:         item.SKU,
			VariationID: string(item.VariationID),
			Quantity:    item.Quantity,
		})
	}
	if ts, err := time.Parse(time.RFC3339, d.DateCreated); err == nil {
		order.CreatedAt = ts
	}
	return order
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	raw, statusCode, err := c.get(ctx, c.apiURL+"/orders/"+url.PathEscape(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	switch {
	case statusCode == http.StatusNotFound:
		return domain.Order{}, domain.ErrNotFound
	case statusCode != http.StatusOK:
		return domain.Order{}, fmt.Errorf("%w: order backend returned %d", domain.ErrUpstreamUnavailable, statusCode)
	}

	var doc orderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Order{}, fmt.Errorf("%w: decode order: %v", domain.ErrUpstreamUnavailable, err)
	}
	return doc.toDomain(), nil
}

func (c *Client) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	query := url.Values{}
	query.Set("search", email)
	query.Set("per_page", fmt.Sprintf("%d", listPageSize))

	raw, statusCode, err := c.get(ctx, c.apiURL+"/orders?"+query.Encode())
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: order backend returned %d", domain.ErrUpstreamUnavailable, statusCode)
	}

	var docs []orderDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode orders: %v", domain.ErrUpstreamUnavailable, err)
	}

	// The search parameter matches loosely; keep only exact billing-email
	// hits so one customer's access never leaks to another.
	normalized := strings.ToLower(strings.TrimSpace(email))
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.toDomain()
		if order.Billing.Email == normalized {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build order backend request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "order backend unreachable",
			"operation", "store_request",
			"outcome", "failure",
			"error", err,
		)
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read order backend response: %v", domain.ErrUpstreamUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

package contract

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/aipropiq/provisioning-service/internal/adapters/http"
	"github.com/aipropiq/provisioning-service/internal/adapters/security"
	"github.com/aipropiq/provisioning-service/internal/application"
	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

const qualifyingOrderBody = `{
	"id": 1001,
	"status": "completed",
	"billing": {"email": "customer@example.com", "first_name": "Test"},
	"line_items": [{"product_id": "i90", "quantity": 1}],
	"date_created": "2026-08-15T09:30:00Z"
}`

const nonQualifyingOrderBody = `{
	"id": 1002,
	"status": "completed",
	"billing": {"email": "other@example.com"},
	"line_items": [{"product_id": "i05", "quantity": 1}]
}`

func TestWebhookProvisionsAndNeverLeaksCredential(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	res := env.post(t, "/webhooks/orders", qualifyingOrderBody, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 acknowledgment, got %d: %s", res.Code, res.Body.String())
	}

	var body struct {
		Status string `json:"status"`
		Data   struct {
			State   string `json:"state"`
			Outcome string `json:"outcome"`
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.State != "provisioned" || body.Data.Outcome != "created" {
		t.Fatalf("unexpected webhook result: %+v", body.Data)
	}
	if strings.Contains(res.Body.String(), "credential") {
		t.Fatalf("webhook response must never carry a credential: %s", res.Body.String())
	}
}

func TestWebhookAcksNonQualifyingOrder(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	res := env.post(t, "/webhooks/orders", nonQualifyingOrderBody, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("denied order must still be acknowledged with 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"state":"denied"`) {
		t.Fatalf("expected denied state in response: %s", res.Body.String())
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	res := env.post(t, "/webhooks/orders", "{not json", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", res.Code)
	}
}

func TestWebhookAcksNotificationWithoutOrderID(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	res := env.post(t, "/webhooks/orders", `{"webhook_id": 7}`, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("ping-style notification must be acknowledged, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"status":"invalid"`) {
		t.Fatalf("expected invalid status in response: %s", res.Body.String())
	}
}

func TestWebhookSignatureContract(t *testing.T) {
	t.Parallel()

	env := newContractEnv("topsecret")

	// Wrong signature is acknowledged as invalid, never processed.
	res := env.post(t, "/webhooks/orders", qualifyingOrderBody, map[string]string{
		"X-WC-Webhook-Signature": "bogus",
	})
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"status":"invalid"`) {
		t.Fatalf("expected acknowledged signature rejection, got %d: %s", res.Code, res.Body.String())
	}
	if env.identity.created() != 0 {
		t.Fatalf("mis-signed delivery must not provision")
	}

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(qualifyingOrderBody))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	res = env.post(t, "/webhooks/orders", qualifyingOrderBody, map[string]string{
		"X-WC-Webhook-Signature": signature,
	})
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"state":"provisioned"`) {
		t.Fatalf("expected provisioned result for signed delivery, got %d: %s", res.Code, res.Body.String())
	}
}

func TestWebhookUpstreamOutageRequestsRedelivery(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	env.store.fetchErr = fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)

	res := env.post(t, "/webhooks/orders", `{"id": 1001}`, nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 to trigger sender redelivery, got %d", res.Code)
	}
}

func TestInternalSurfaceRequiresServiceToken(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")

	res := env.post(t, "/internal/v1/login-fallback", `{"email":"customer@example.com"}`, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	res = env.post(t, "/internal/v1/login-fallback", `{"email":"customer@example.com"}`, map[string]string{
		"Authorization": "Bearer wrong",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", res.Code)
	}
}

func TestLoginFallbackContract(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	env.store.addOrder(domain.Order{
		ID:        "1003",
		Status:    domain.StatusProcessing,
		Billing:   domain.Billing{Email: "late@example.com"},
		LineItems: []domain.LineItem{{ProductID: "i90", Quantity: 1}},
	})

	res := env.post(t, "/internal/v1/login-fallback", `{"email":"late@example.com"}`, map[string]string{
		"Authorization": "Bearer good-token",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login fallback failed: %d %s", res.Code, res.Body.String())
	}

	var body struct {
		Data application.ReconcileResult `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Data.GrantedNow || body.Data.Reason != application.ReasonProvisioned {
		t.Fatalf("expected granted-now provisioned, got %+v", body.Data)
	}
	if body.Data.Credential == "" {
		t.Fatalf("fallback response must carry the fresh credential")
	}
}

func TestAccessCheckContract(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	env.store.addOrder(domain.Order{
		ID:        "2001",
		Status:    domain.StatusCompleted,
		Billing:   domain.Billing{Email: "buyer@example.com"},
		LineItems: []domain.LineItem{{ProductID: "i90", Quantity: 1}},
	})

	res := env.post(t, "/api/v1/access-check", `{"email":"buyer@example.com"}`, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("access check failed: %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"has_access":true`) {
		t.Fatalf("expected has_access true: %s", res.Body.String())
	}

	res = env.post(t, "/api/v1/access-check", `{"email":"stranger@example.com"}`, nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"has_access":false`) {
		t.Fatalf("expected has_access false: %d %s", res.Code, res.Body.String())
	}
}

func TestFallbackRateLimitContract(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	env.rateLimits.count = 1000

	res := env.post(t, "/internal/v1/login-fallback", `{"email":"limited@example.com"}`, map[string]string{
		"Authorization": "Bearer good-token",
	})
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when over threshold, got %d", res.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newContractEnv("")
	for _, path := range []string{"/healthz", "/readyz", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		env.router.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, res.Code)
		}
	}
}

type contractEnv struct {
	router     http.Handler
	store      *contractStore
	identity   *contractIdentity
	rateLimits *contractRateLimits
}

func (e *contractEnv) post(t *testing.T, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func newContractEnv(webhookSecret string) *contractEnv {
	store := &contractStore{byID: map[string]domain.Order{}, byEmail: map[string][]domain.Order{}}
	store.addOrder(domain.Order{
		ID:        "1001",
		Status:    domain.StatusCompleted,
		Billing:   domain.Billing{Email: "customer@example.com", FirstName: "Test"},
		LineItems: []domain.LineItem{{ProductID: "i90", Quantity: 1}},
	})
	identity := &contractIdentity{records: map[string]bool{}}
	rateLimits := &contractRateLimits{}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			Policy: domain.AccessPolicy{
				ProductID:        "i90",
				GrantingStatuses: []domain.OrderStatus{domain.StatusCompleted, domain.StatusProcessing},
			},
			FallbackRateLimitThreshold: 100,
			FallbackRateLimitWindow:    time.Minute,
		},
		Store:      store,
		Identity:   identity,
		Attempts:   noopAttempts{},
		RateLimits: rateLimits,
	})

	handler := httpadapter.NewHandler(svc, staticTokens{}, security.NewWebhookSignatureVerifier(webhookSecret))
	return &contractEnv{
		router:     httpadapter.NewRouter(handler),
		store:      store,
		identity:   identity,
		rateLimits: rateLimits,
	}
}

type contractStore struct {
	mu       sync.Mutex
	byID     map[string]domain.Order
	byEmail  map[string][]domain.Order
	fetchErr error
}

func (s *contractStore) addOrder(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[order.ID] = order
	s.byEmail[order.Billing.Email] = append(s.byEmail[order.Billing.Email], order)
}

func (s *contractStore) FetchOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return domain.Order{}, s.fetchErr
	}
	order, ok := s.byID[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (s *contractStore) ListOrdersByEmail(_ context.Context, email string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail[email], nil
}

type contractIdentity struct {
	mu      sync.Mutex
	records map[string]bool
}

func (c *contractIdentity) created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *contractIdentity) IdentityExists(_ context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[email], nil
}

func (c *contractIdentity) CreateIdentity(_ context.Context, email, _ string, _ domain.IdentityMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records[email] {
		return domain.ErrConflict
	}
	c.records[email] = true
	return nil
}

type contractRateLimits struct {
	mu    sync.Mutex
	count int64
}

func (r *contractRateLimits) Increment(_ context.Context, _ string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.count, nil
}

type noopAttempts struct{}

func (noopAttempts) RecordWithOutboxTx(context.Context, ports.ProvisionAttempt, ports.OutboxEvent) error {
	return nil
}

func (noopAttempts) Record(context.Context, ports.ProvisionAttempt) error { return nil }

func (noopAttempts) ListByEmail(context.Context, string, int) ([]ports.ProvisionAttempt, error) {
	return nil, nil
}

type staticTokens struct{}

func (staticTokens) Verify(token string) (string, error) {
	if token == "good-token" {
		return "ui-layer", nil
	}
	return "", domain.ErrUnauthorized
}

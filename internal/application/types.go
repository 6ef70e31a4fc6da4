package application

import (
	"time"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

type Config struct {
	Policy domain.AccessPolicy

	// Rate limits for the synchronous internal surface. Zero thresholds
	// disable limiting.
	FallbackRateLimitThreshold int
	FallbackRateLimitWindow    time.Duration
}

// Attempt sources recorded in the audit trail.
const (
	SourceWebhook       = "webhook"
	SourceLoginFallback = "login-fallback"
	SourceManual        = "manual"
)

// Reasons returned to the login-fallback caller.
const (
	ReasonNoQualifyingPurchase = "no-qualifying-purchase"
	ReasonProvisioned          = "provisioned"
	ReasonAccountExists        = "account-exists-check-credentials"
)

// Outbox event types published for downstream consumers.
const (
	EventAccessProvisioned = "access.provisioned"
	EventAccessDenied      = "access.denied"
)

// OrderPayload is the webhook-embedded order body. Presence of a payload
// means the sender delivered full line items; absence means
// identifier-only and the order must be re-fetched.
type OrderPayload struct {
	Status    domain.OrderStatus
	Billing   domain.Billing
	LineItems []domain.LineItem
	CreatedAt time.Time
}

// OrderNotification is the tagged inbound variant, resolved once at
// ingress and never inspected ad hoc downstream.
type OrderNotification struct {
	OrderID string
	Payload *OrderPayload
}

// Inspection is the Order Inspector's verdict on a single order.
type Inspection struct {
	Qualifies bool
	Email     string
	Order     domain.Order
}

// WebhookResult reports how far a notification travelled through the
// ingress state machine and with which outcome.
type WebhookResult struct {
	State   domain.NotificationState   `json:"state"`
	Outcome domain.ProvisioningOutcome `json:"outcome,omitempty"`
	OrderID string                     `json:"order_id,omitempty"`
	Email   string                     `json:"email,omitempty"`
	Reason  string                     `json:"reason,omitempty"`
}

// AccessStatus answers "does this email have a qualifying purchase".
type AccessStatus struct {
	HasAccess    bool      `json:"has_access"`
	OrderID      string    `json:"order_id,omitempty"`
	PurchaseDate time.Time `json:"purchase_date,omitempty"`
}

// EnsureResult is the provisioner's outcome plus, on creation, the
// plaintext credential for out-of-band delivery by the caller.
type EnsureResult struct {
	Outcome    domain.ProvisioningOutcome
	Credential string
}

// ReconcileResult is returned to the UI layer after a failed primary
// login.
type ReconcileResult struct {
	GrantedNow bool   `json:"granted_now"`
	Reason     string `json:"reason"`
	Credential string `json:"credential,omitempty"`
}

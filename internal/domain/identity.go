package domain

import "time"

// ProvenanceTag marks identity records created by this service so they
// can be told apart from manually created accounts.
const ProvenanceTag = "provisioned-by-purchase"

// IdentityMetadata is attached to a created identity record. The source
// order id and timestamp make every account traceable to the purchase
// that granted it.
type IdentityMetadata struct {
	Provenance    string    `json:"provenance"`
	OrderID       string    `json:"order_id"`
	ProvisionedAt time.Time `json:"provisioned_at"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Company       string    `json:"company,omitempty"`
}

// ProvisioningOutcome is the transient result of an ensure-account call.
type ProvisioningOutcome string

const (
	OutcomeCreated       ProvisioningOutcome = "created"
	OutcomeAlreadyExists ProvisioningOutcome = "already-existed"
	OutcomeDenied        ProvisioningOutcome = "denied"
	OutcomeError         ProvisioningOutcome = "error"
)

// NotificationState tracks a webhook notification through the ingress
// state machine.
type NotificationState string

const (
	NotificationReceived    NotificationState = "received"
	NotificationInspected   NotificationState = "inspected"
	NotificationProvisioned NotificationState = "provisioned"
	NotificationDenied      NotificationState = "denied"
	NotificationErrored     NotificationState = "errored"
)

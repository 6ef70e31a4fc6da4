package domain

import "time"

// OrderStatus is the storefront's order lifecycle state as delivered in
// webhooks and order lookups.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusOnHold     OrderStatus = "on-hold"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusFailed     OrderStatus = "failed"
)

// LineItem is one purchased position on an order. The storefront may
// reference the reserved product by product id, SKU, or variation id, so
// all three are kept.
type LineItem struct {
	ProductID   string
	SKU         string
	VariationID string
	Quantity    int
}

// Billing carries the purchaser contact block from the order.
type Billing struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Company   string
}

// Order is the storefront order as this service sees it: immutable,
// re-fetched on demand, never cached.
type Order struct {
	ID        string
	Status    OrderStatus
	Billing   Billing
	LineItems []LineItem
	CreatedAt time.Time
}

// AccessPolicy is the qualification rule: which product grants access and
// in which statuses. It is built once from configuration and shared by
// every entry path so the predicate cannot diverge.
type AccessPolicy struct {
	ProductID        string
	GrantingStatuses []OrderStatus
}

// StatusGrants reports whether the given status is in the access-granting
// subset.
func (p AccessPolicy) StatusGrants(status OrderStatus) bool {
	for _, s := range p.GrantingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ContainsProduct reports whether the order carries the reserved product
// on any line item, matching product id, SKU, or variation id.
func ContainsProduct(order Order, productID string) bool {
	for _, item := range order.LineItems {
		if item.ProductID == productID || item.SKU == productID || item.VariationID == productID {
			return true
		}
	}
	return false
}

// OrderQualifies is the single qualification predicate: the order grants
// access iff it contains the reserved product and its status is in the
// access-granting subset. Both the webhook path and the access verifier
// must go through this function.
func OrderQualifies(order Order, policy AccessPolicy) bool {
	return ContainsProduct(order, policy.ProductID) && policy.StatusGrants(order.Status)
}

// RedactEmail masks the local part of an email for log lines while
// keeping enough of it for audit correlation.
func RedactEmail(email string) string {
	at := -1
	for i, r := range email {
		if r == '@' {
			at = i
			break
		}
	}
	if at < 0 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

package ports

import (
	"context"

	"github.com/aipropiq/provisioning-service/internal/domain"
)

// StoreClient is the outbound interface to the order backend. Both
// methods re-query the upstream on every call; the service keeps no
// order cache by design.
type StoreClient interface {
	// FetchOrder resolves a single order by identifier. Returns
	// domain.ErrNotFound when the id does not resolve upstream and
	// domain.ErrUpstreamUnavailable when the backend is unreachable.
	FetchOrder(ctx context.Context, orderID string) (domain.Order, error)
	// ListOrdersByEmail returns the purchaser's orders for access
	// verification. Implementations may restrict the listing to statuses
	// that can possibly grant access.
	ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)
}

// IdentityClient is the outbound interface to the identity backend,
// which owns the authoritative existence of accounts.
type IdentityClient interface {
	IdentityExists(ctx context.Context, email string) (bool, error)
	// CreateIdentity creates the account with a freshly generated
	// credential. Returns domain.ErrConflict when the backend reports the
	// record now exists, which callers treat as already-existed. That
	// conflict mapping is the idempotency seam that makes at-least-once
	// webhook delivery safe.
	CreateIdentity(ctx context.Context, email, credential string, meta domain.IdentityMetadata) error
}

// ProfileStore mirrors identity existence into the secondary profile
// backend. Best effort only: failures are logged and never block
// provisioning.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, email, firstName, lastName string) error
}

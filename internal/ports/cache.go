package ports

import (
	"context"
	"time"
)

// RateLimitStore bounds how often the synchronous surface (login
// fallback, manual provision, access check) can be hit per key. Access
// decisions themselves are never cached; only request counting lives
// here.
type RateLimitStore interface {
	// Increment bumps the counter for key within the window and returns
	// the count including this request.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

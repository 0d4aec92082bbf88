package shared

import (
	"context"
	"time"
)

// Lock is a held mutual-exclusion lease
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived named locks. Obtain fails with
// ErrActionInProgress when the key is already held.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Package store provides the short-lived key/value registry used for event
// de-duplication and velocity counters.
//
// Implementations are best effort: MemoryStore only sees the traffic of its
// own process, so in a multi-instance deployment limits apply per instance.
// RedisStore shares state across instances.
package store

import (
	"context"
	"time"
)

type Store interface {
	// SetIfAbsent stores key for ttl and reports true if it was not already present.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Incr bumps the counter under key and returns the new value. The ttl is
	// attached when the counter is created, so the window is fixed from the
	// first hit.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Package ephemeral defines the TTL-keyed store the coordination layer
// writes presence, cursor and cache state into. Implementations must
// expire entries on their own; callers never sweep.
package ephemeral

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the value and true if the key exists and has not expired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value and resets the key's TTL from now. A zero ttl
	// means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// SetAdd adds a member to the set at key and resets the key's TTL.
	SetAdd(ctx context.Context, key, member string, ttl time.Duration) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	// HashSet writes one field of the hash at key and resets the key's TTL.
	HashSet(ctx context.Context, key, field, value string, ttl time.Duration) error
	HashDelete(ctx context.Context, key, field string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	Close() error
}

package dedup

import (
	"context"
	"time"
)

// Store is the key/value contract backing the cache: set membership with
// TTL expiry plus cursor-based key enumeration. Redis satisfies it; tests
// use an in-memory fake.
type Store interface {
	AddToSet(ctx context.Context, key string, members ...string) (int64, error)
	// IsMemberBatch tests member against every key in one round trip and
	// returns the results in key order.
	IsMemberBatch(ctx context.Context, keys []string, member string) ([]bool, error)
	// ScanKeys walks keys matching pattern incrementally; a returned
	// cursor of 0 means the scan is finished. Implementations must never
	// materialize the full keyspace in one call.
	ScanKeys(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
	// ExpireIfUnset sets ttl on key only when the key carries no expiry yet.
	ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

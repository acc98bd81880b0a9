// Package dedup tracks which product URLs have already been surfaced,
// namespaced by time-rotated window keys so the set never grows without
// bound. The backing store is best-effort: when it is unreachable the
// cache degrades to "not a duplicate" rather than halting a crawl, at the
// cost of a rare repeated notification.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// KeyPrefix namespaces every rotation-window set in the store.
const KeyPrefix = "product_url_cache"

const scanBatch = 100

type Cache struct {
	store  Store
	prefix string
	ttl    time.Duration
	window time.Duration

	now func() time.Time
}

// New builds a cache whose window keys rotate every window and whose sets
// self-evict after ttl. ttl should cover the longest plausible gap between
// duplicate sightings of the same deal.
func New(store Store, ttl, window time.Duration) *Cache {
	return &Cache{
		store:  store,
		prefix: KeyPrefix,
		ttl:    ttl,
		window: window,
		now:    time.Now,
	}
}

// CurrentWindowKey derives the active rotation key from wall-clock time
// truncated to the window, plus the weekday. Concurrent crawlers derive
// the same key without coordination.
func (c *Cache) CurrentWindowKey() string {
	now := c.now()
	bucket := now.Truncate(c.window).Unix()
	weekday := strings.ToLower(now.Weekday().String())
	return fmt.Sprintf("%s_%d_%s", c.prefix, bucket, weekday)
}

// Exists reports whether url is a member of any live rotation window.
// Keys are enumerated incrementally with a cursor and membership is
// checked per batch, short-circuiting on the first hit. Store errors are
// treated as "not seen".
func (c *Cache) Exists(ctx context.Context, url string) bool {
	pattern := c.prefix + "*"
	var cursor uint64

	for {
		keys, next, err := c.store.ScanKeys(ctx, cursor, pattern, scanBatch)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Dedup scan failed, treating as not seen")
			return false
		}

		if len(keys) > 0 {
			hits, err := c.store.IsMemberBatch(ctx, keys, url)
			if err != nil {
				log.Warn().Err(err).Str("url", url).Msg("Dedup membership check failed, treating as not seen")
				return false
			}
			for _, hit := range hits {
				if hit {
					return true
				}
			}
		}

		if next == 0 {
			return false
		}
		cursor = next
	}
}

// Register adds url to the current rotation window and ensures the window
// set carries an expiry. A failed write is logged and dropped; the crawl
// is never aborted over it.
func (c *Cache) Register(ctx context.Context, url string) {
	key := c.CurrentWindowKey()

	if _, err := c.store.AddToSet(ctx, key, url); err != nil {
		log.Warn().Err(err).Str("url", url).Str("window", key).Msg("Dedup register failed, dropping write")
		return
	}

	if _, err := c.store.ExpireIfUnset(ctx, key, c.ttl); err != nil {
		log.Warn().Err(err).Str("window", key).Msg("Failed to set window expiry")
	}
}

// CountWindows reports how many rotation windows are currently live.
func (c *Cache) CountWindows(ctx context.Context) (int, error) {
	pattern := c.prefix + "*"
	var cursor uint64
	total := 0

	for {
		keys, next, err := c.store.ScanKeys(ctx, cursor, pattern, scanBatch)
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

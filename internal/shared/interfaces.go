package shared

import (
	"context"
	"time"
)

// interfaces

// Pager drives one listing page at a time for a single crawl session.
// Implementations own their browser/transport and are not safe for
// concurrent use.
type Pager interface {
	// Open navigates to the seed URL of a listing.
	Open(ctx context.Context, url string) error
	// Page returns the HTML of the current page once waitFor is present.
	Page(ctx context.Context, waitFor string) (string, error)
	// HasNext reports whether a next-page control matching selector exists.
	HasNext(ctx context.Context, selector string) (bool, error)
	// Next advances to the next page and confirms the page context changed.
	Next(ctx context.Context, selector string) error
	Close(ctx context.Context) error
}

type RateLimiter interface {
	Wait(ctx context.Context, domain string, delay time.Duration) error
}

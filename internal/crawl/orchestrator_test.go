package crawl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdur-rab-khan/aladdin-bot/internal/gate"
	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/retry"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// memDedup is a shared in-memory stand-in for the rotating-window cache.
type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{seen: make(map[string]bool)}
}

func (m *memDedup) Exists(ctx context.Context, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[url]
}

func (m *memDedup) Register(ctx context.Context, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[url] = true
}

type classifyFunc func(ctx context.Context, p product.Product) (string, error)

func (f classifyFunc) Classify(ctx context.Context, p product.Product) (string, error) {
	return f(ctx, p)
}

type capturingNotifier struct {
	batches [][]product.Product
}

func (c *capturingNotifier) Send(ctx context.Context, batch []product.Product) error {
	c.batches = append(c.batches, batch)
	return nil
}

type memFailureSink struct {
	mu      sync.Mutex
	records []string
}

func (m *memFailureSink) Record(ctx context.Context, t Target, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, string(t.Site)+": "+reason)
	return nil
}

func alwaysBest(ctx context.Context, p product.Product) (string, error) {
	return gate.VerdictBestDeal, nil
}

func orchestratorConfig(dups *memDedup) SessionConfig {
	g := gate.New(nil, dups, classifyFunc(alwaysBest), retry.Policy{MaxAttempts: 1, Base: time.Millisecond, Max: time.Millisecond})
	return SessionConfig{
		Extractor:   fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(3)}},
		Gate:        g,
		Registry:    dups,
		Retry:       retry.Policy{MaxAttempts: 1, Base: time.Millisecond, Max: time.Millisecond},
		MaxProducts: 10,
		MaxPages:    5,
	}
}

func singlePagePagers() PagerFactory {
	return func(ctx context.Context, profile sites.Profile) (shared.Pager, error) {
		return &fakePager{pages: []string{"page-1"}}, nil
	}
}

func TestSecondRunYieldsNothingNew(t *testing.T) {
	dups := newMemDedup()
	targets := []Target{{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}}

	factory := singlePagePagers()

	first := NewOrchestrator(targets, factory, orchestratorConfig(dups)).Run(context.Background())
	if len(first[0].Products) != 3 {
		t.Fatalf("first run accepted %d products, want 3", len(first[0].Products))
	}

	second := NewOrchestrator(targets, factory, orchestratorConfig(dups)).Run(context.Background())
	if len(second[0].Products) != 0 {
		t.Errorf("second run re-surfaced %d products, want 0", len(second[0].Products))
	}
	if second[0].Status != StatusDone {
		t.Errorf("an all-duplicates page still finishes clean, got %s", second[0].Status)
	}
}

func TestFailingTargetDoesNotBlockSiblings(t *testing.T) {
	dups := newMemDedup()
	targets := []Target{
		{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"},
		{Site: sites.Flipkart, Category: "t-shirt", URL: "https://www.flipkart.com/bad/seed"},
	}

	factory := func(ctx context.Context, profile sites.Profile) (shared.Pager, error) {
		return &urlAwarePager{fakePager: fakePager{pages: []string{"page-1"}}}, nil
	}

	sink := &memFailureSink{}
	notifier := &capturingNotifier{}

	cfg := orchestratorConfig(dups)
	results := NewOrchestrator(targets, factory, cfg).
		WithNotifier(notifier).
		WithFailureSink(sink).
		Run(context.Background())

	byStatus := map[Status]int{}
	for _, res := range results {
		byStatus[res.Status]++
	}
	if byStatus[StatusDone] != 1 || byStatus[StatusPartialFailure] != 1 {
		t.Fatalf("statuses = %v", byStatus)
	}

	if len(sink.records) != 1 {
		t.Errorf("failure sink got %d records, want 1", len(sink.records))
	}
	if len(notifier.batches) != 1 || len(notifier.batches[0]) != 3 {
		t.Errorf("notifier batch = %v", notifier.batches)
	}
}

func TestUnknownSiteAborts(t *testing.T) {
	dups := newMemDedup()
	targets := []Target{{Site: sites.Site("shopzilla"), Category: "t-shirt", URL: "https://example.com"}}

	results := NewOrchestrator(targets, singlePagePagers(), orchestratorConfig(dups)).Run(context.Background())
	if results[0].Status != StatusAborted {
		t.Errorf("status = %s, want %s", results[0].Status, StatusAborted)
	}
}

// urlAwarePager fails Open for seeds marked bad, so one target in a run
// can fail while its sibling succeeds.
type urlAwarePager struct {
	fakePager
}

func (u *urlAwarePager) Open(ctx context.Context, url string) error {
	if strings.Contains(url, "/bad/") {
		return errors.New("seed unreachable")
	}
	return u.fakePager.Open(ctx, url)
}

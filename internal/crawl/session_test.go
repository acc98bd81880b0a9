package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/abdur-rab-khan/aladdin-bot/internal/extract"
	"github.com/abdur-rab-khan/aladdin-bot/internal/gate"
	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/retry"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

type fakePager struct {
	pages       []string
	pageIdx     int
	openedURL   string
	failOpen    bool
	failPageAt  int // 1-based page number whose fetch fails, 0 = never
	blockPageAt int // 1-based page number whose fetch hangs until ctx ends
	failNext    bool
	closed      bool

	hasNextCalls int
}

func (f *fakePager) Open(ctx context.Context, url string) error {
	f.openedURL = url
	if f.failOpen {
		return errors.New("navigation timed out")
	}
	return nil
}

func (f *fakePager) Page(ctx context.Context, waitFor string) (string, error) {
	if f.failPageAt > 0 && f.pageIdx+1 == f.failPageAt {
		return "", errors.New("page never settled")
	}
	if f.blockPageAt > 0 && f.pageIdx+1 == f.blockPageAt {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.pages[f.pageIdx], nil
}

func (f *fakePager) HasNext(ctx context.Context, selector string) (bool, error) {
	f.hasNextCalls++
	return f.pageIdx < len(f.pages)-1, nil
}

func (f *fakePager) Next(ctx context.Context, selector string) error {
	if f.failNext {
		return errors.New("next button stale")
	}
	f.pageIdx++
	return nil
}

func (f *fakePager) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type fakeExtractor struct {
	cards map[string][]product.RawCard
	err   error
}

func (f fakeExtractor) Extract(html string, profile sites.Profile) ([]product.RawCard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cards[html], nil
}

type evalFunc func(ctx context.Context, p product.Product) gate.Decision

func (f evalFunc) Evaluate(ctx context.Context, p product.Product) gate.Decision {
	return f(ctx, p)
}

func acceptAll(ctx context.Context, p product.Product) gate.Decision {
	return gate.Decision{Accepted: true}
}

type recordingRegistry struct {
	urls []string
}

func (r *recordingRegistry) Register(ctx context.Context, url string) {
	r.urls = append(r.urls, url)
}

func amazonProfile(t *testing.T) sites.Profile {
	t.Helper()
	profile, ok := sites.Lookup(sites.Amazon)
	if !ok {
		t.Fatal("amazon profile missing")
	}
	return profile
}

func amazonCard(n int, price, discount string) product.RawCard {
	return product.RawCard{
		sites.FieldName:     fmt.Sprintf("Cotton T-Shirt %d", n),
		sites.FieldPrice:    price,
		sites.FieldDiscount: discount,
		sites.FieldURL:      fmt.Sprintf("/dp/B00000%04d", n),
	}
}

func amazonCards(count int) []product.RawCard {
	cards := make([]product.RawCard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, amazonCard(i, "₹1,999", "₹1,499"))
	}
	return cards
}

func testSessionConfig(pager *fakePager, ex fakeExtractor, reg *recordingRegistry) SessionConfig {
	return SessionConfig{
		Pager:       pager,
		Extractor:   ex,
		Gate:        evalFunc(acceptAll),
		Registry:    reg,
		Retry:       retry.Policy{MaxAttempts: 1, Base: time.Millisecond, Max: time.Millisecond},
		MaxProducts: 10,
		MaxPages:    10,
	}
}

func TestPartialResultsSurviveFetchFailure(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1", "page-2"}, failPageAt: 2}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(5)}}
	reg := &recordingRegistry{}

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	s := NewSession(target, amazonProfile(t), testSessionConfig(pager, ex, reg))

	res := s.Run(context.Background())
	if res.Status != StatusPartialFailure {
		t.Fatalf("status = %s, want %s", res.Status, StatusPartialFailure)
	}
	if len(res.Products) != 5 {
		t.Errorf("products from the good page must survive, got %d", len(res.Products))
	}
	if res.Err == nil {
		t.Error("partial failure must carry the fetch error")
	}
	if len(reg.urls) != 5 {
		t.Errorf("registry saw %d urls, want 5", len(reg.urls))
	}
}

func TestProductCapEndsSessionEarly(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1", "page-2"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(5)}}
	reg := &recordingRegistry{}

	cfg := testSessionConfig(pager, ex, reg)
	cfg.MaxProducts = 3

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), cfg).Run(context.Background())

	if res.Status != StatusDone {
		t.Fatalf("status = %s, want %s", res.Status, StatusDone)
	}
	if len(res.Products) != 3 {
		t.Errorf("got %d products, want the cap of 3", len(res.Products))
	}
	if pager.hasNextCalls != 0 {
		t.Error("a session at its cap must not look for a next page")
	}
}

func TestProductCapDefaultsFromCategoryTable(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(6)}}
	reg := &recordingRegistry{}

	cfg := testSessionConfig(pager, ex, reg)
	cfg.MaxProducts = 0

	target := Target{Site: sites.Amazon, Category: "cargo", URL: "https://www.amazon.in/s?k=cargo"}
	res := NewSession(target, amazonProfile(t), cfg).Run(context.Background())

	want := sites.ProductsPerCategory["cargo"]
	if len(res.Products) != want {
		t.Errorf("got %d products, want the category's cap of %d", len(res.Products), want)
	}
}

func TestDuplicateCardsOnOnePageCollapse(t *testing.T) {
	same := amazonCard(7, "₹1,999", "₹1,499")
	pager := &fakePager{pages: []string{"page-1"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{
		"page-1": {same, same, same},
	}}
	reg := &recordingRegistry{}

	gateCalls := 0
	cfg := testSessionConfig(pager, ex, reg)
	cfg.Gate = evalFunc(func(ctx context.Context, p product.Product) gate.Decision {
		gateCalls++
		return gate.Decision{Accepted: true}
	})

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), cfg).Run(context.Background())

	if len(res.Products) != 1 {
		t.Errorf("duplicate cards resolved to %d products, want 1", len(res.Products))
	}
	if gateCalls != 1 {
		t.Errorf("gate ran %d times, want 1", gateCalls)
	}
}

func TestRejectedProductsNeverRegistered(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(4)}}
	reg := &recordingRegistry{}

	cfg := testSessionConfig(pager, ex, reg)
	cfg.Gate = evalFunc(func(ctx context.Context, p product.Product) gate.Decision {
		return gate.Decision{Reason: "over price ceiling"}
	})

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), cfg).Run(context.Background())

	if res.Status != StatusDone {
		t.Fatalf("status = %s, want %s", res.Status, StatusDone)
	}
	if len(res.Products) != 0 {
		t.Errorf("got %d products, want 0", len(res.Products))
	}
	if len(reg.urls) != 0 {
		t.Errorf("rejected urls leaked into the registry: %v", reg.urls)
	}
}

func TestMissingContainerEndsDone(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1"}}
	ex := fakeExtractor{err: extract.ErrNoContainer}
	reg := &recordingRegistry{}

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), testSessionConfig(pager, ex, reg)).Run(context.Background())

	if res.Status != StatusDone {
		t.Fatalf("status = %s, want %s", res.Status, StatusDone)
	}
	if res.Err != nil {
		t.Errorf("end of results is not an error, got %v", res.Err)
	}
}

func TestSeedOpenFailure(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1"}, failOpen: true}
	reg := &recordingRegistry{}

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), testSessionConfig(pager, fakeExtractor{}, reg)).Run(context.Background())

	if res.Status != StatusPartialFailure {
		t.Fatalf("status = %s, want %s", res.Status, StatusPartialFailure)
	}
	if len(res.Products) != 0 {
		t.Errorf("got %d products, want 0", len(res.Products))
	}
}

func TestCancellationFlushesPartialResults(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1", "page-2"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(2)}}
	reg := &recordingRegistry{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted := 0
	cfg := testSessionConfig(pager, ex, reg)
	cfg.Gate = evalFunc(func(ctx context.Context, p product.Product) gate.Decision {
		accepted++
		if accepted == 2 {
			cancel()
		}
		return gate.Decision{Accepted: true}
	})

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), cfg).Run(ctx)

	if res.Status != StatusAborted {
		t.Fatalf("status = %s, want %s", res.Status, StatusAborted)
	}
	if len(res.Products) != 2 {
		t.Errorf("cancellation dropped accepted products, got %d want 2", len(res.Products))
	}
}

func TestTimeoutMidFetchAborts(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1", "page-2"}, blockPageAt: 2}
	ex := fakeExtractor{cards: map[string][]product.RawCard{"page-1": amazonCards(3)}}
	reg := &recordingRegistry{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), testSessionConfig(pager, ex, reg)).Run(ctx)

	if res.Status != StatusAborted {
		t.Fatalf("status = %s, want %s", res.Status, StatusAborted)
	}
	if len(res.Products) != 3 {
		t.Errorf("timeout dropped page-1 products, got %d want 3", len(res.Products))
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", res.Err)
	}
}

func TestPagesAdvanceAcrossResults(t *testing.T) {
	pager := &fakePager{pages: []string{"page-1", "page-2"}}
	ex := fakeExtractor{cards: map[string][]product.RawCard{
		"page-1": amazonCards(2),
		"page-2": {amazonCard(100, "₹2,499", "₹1,999")},
	}}
	reg := &recordingRegistry{}

	target := Target{Site: sites.Amazon, Category: "t-shirt", URL: "https://www.amazon.in/s?k=t-shirt"}
	res := NewSession(target, amazonProfile(t), testSessionConfig(pager, ex, reg)).Run(context.Background())

	if res.Status != StatusDone {
		t.Fatalf("status = %s, want %s", res.Status, StatusDone)
	}
	if len(res.Products) != 3 {
		t.Errorf("got %d products across pages, want 3", len(res.Products))
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Pages)
	}
}

// Package crawl drives the per-target pagination state machine and fans
// targets out into independent sessions.
package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/extract"
	"github.com/abdur-rab-khan/aladdin-bot/internal/gate"
	"github.com/abdur-rab-khan/aladdin-bot/internal/metrics"
	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/retry"
	"github.com/abdur-rab-khan/aladdin-bot/internal/robots"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// Target is one (site, category, seed URL) tuple driving a session.
type Target struct {
	Site     sites.Site
	Category string
	URL      string
}

// Status is a session's terminal state. Partial results are valid output:
// a session that failed on page 4 still returns pages 1-3.
type Status string

const (
	StatusDone           Status = "done"
	StatusPartialFailure Status = "partial_failure"
	StatusAborted        Status = "aborted"
)

type state int

const (
	stateIdle state = iota
	stateFetchingPage
	stateExtractingCards
	stateEvaluating
	statePaginating
)

type Result struct {
	Target   Target
	Status   Status
	Products []product.Product
	Pages    int
	Err      error
}

// Extractor selects raw cards out of page HTML.
type Extractor interface {
	Extract(html string, profile sites.Profile) ([]product.RawCard, error)
}

// Evaluator is the deal gate.
type Evaluator interface {
	Evaluate(ctx context.Context, p product.Product) gate.Decision
}

// Registry records accepted URLs in the shared dedup cache.
type Registry interface {
	Register(ctx context.Context, url string)
}

// Session owns all state for crawling one target: page counter, accepted
// products, and the session-local URL set that suppresses duplicate cards
// on a single page. Nothing here is shared across sessions.
type Session struct {
	target    Target
	profile   sites.Profile
	pager     shared.Pager
	extractor Extractor
	gate      Evaluator
	registry  Registry

	limiter shared.RateLimiter
	robots  *robots.Checker
	met     *metrics.CrawlMetrics

	retry       retry.Policy
	maxProducts int
	maxPages    int
	fetchDelay  time.Duration

	state    state
	page     int
	accepted []product.Product
	seen     map[string]struct{}

	log zerolog.Logger
}

type SessionConfig struct {
	Pager     shared.Pager
	Extractor Extractor
	Gate      Evaluator
	Registry  Registry

	// Optional collaborators.
	Limiter shared.RateLimiter
	Robots  *robots.Checker
	Metrics *metrics.CrawlMetrics

	Retry retry.Policy
	// MaxProducts zero or below falls back to the category's table entry.
	MaxProducts int
	MaxPages    int
	FetchDelay  time.Duration
	// Timeout bounds one session end to end; exceeding it forces Aborted.
	Timeout time.Duration
}

func NewSession(target Target, profile sites.Profile, cfg SessionConfig) *Session {
	if cfg.MaxProducts <= 0 {
		cfg.MaxProducts = sites.ProductCountFor(target.Category)
	}
	return &Session{
		target:      target,
		profile:     profile,
		pager:       cfg.Pager,
		extractor:   cfg.Extractor,
		gate:        cfg.Gate,
		registry:    cfg.Registry,
		limiter:     cfg.Limiter,
		robots:      cfg.Robots,
		met:         cfg.Metrics,
		retry:       cfg.Retry,
		maxProducts: cfg.MaxProducts,
		maxPages:    cfg.MaxPages,
		fetchDelay:  cfg.FetchDelay,
		state:       stateIdle,
		page:        1,
		seen:        make(map[string]struct{}),
		log: log.With().
			Str("site", string(target.Site)).
			Str("category", target.Category).
			Logger(),
	}
}

// Run executes the pagination loop until the page limit, a "no more
// results" signal, or a hard failure. Only the single fetch step is
// retried; a page that stays broken ends the session with whatever was
// accepted so far, never a restart from page one.
func (s *Session) Run(ctx context.Context) Result {
	if s.robots != nil && !s.robots.IsAllowed(s.target.URL) {
		s.log.Warn().Str("url", s.target.URL).Msg("Blocked by robots.txt")
		return s.finish(StatusAborted, errors.New("blocked by robots.txt"))
	}

	if err := s.fetchSeed(ctx); err != nil {
		return s.fetchFailed("open", err)
	}

	for {
		html, err := s.fetchPage(ctx)
		if err != nil {
			return s.fetchFailed("page", err)
		}

		done, err := s.evaluatePage(ctx, html)
		if err != nil {
			return s.finish(StatusAborted, err)
		}
		if done {
			return s.finish(StatusDone, nil)
		}

		if ctx.Err() != nil {
			return s.finish(StatusAborted, ctx.Err())
		}

		more, err := s.pager.HasNext(ctx, s.profile.NextButton)
		if err != nil || !more {
			return s.finish(StatusDone, nil)
		}
		if s.page >= s.maxPages {
			s.log.Info().Int("pages", s.page).Msg("Page ceiling reached")
			return s.finish(StatusDone, nil)
		}

		s.state = statePaginating
		s.wait(ctx)
		if err := s.pager.Next(ctx, s.profile.NextButton); err != nil {
			return s.fetchFailed("paginate", err)
		}
		s.page++
	}
}

func (s *Session) fetchSeed(ctx context.Context) error {
	s.state = stateFetchingPage
	s.wait(ctx)

	_, err := retry.Do(ctx, s.retry, "open "+s.target.URL, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.pager.Open(ctx, s.target.URL)
	})
	return err
}

func (s *Session) fetchPage(ctx context.Context) (string, error) {
	s.state = stateFetchingPage
	waitFor := s.profile.Container + " " + s.profile.Card

	start := time.Now()
	html, err := retry.Do(ctx, s.retry, "fetch page", func(ctx context.Context) (string, error) {
		return s.pager.Page(ctx, waitFor)
	})
	if err != nil {
		return "", err
	}

	if s.met != nil {
		s.met.PagesFetched.WithLabelValues(string(s.target.Site)).Inc()
		s.met.FetchDuration.WithLabelValues(string(s.target.Site)).Observe(time.Since(start).Seconds())
	}
	return html, nil
}

// evaluatePage runs extract → normalize → gate over one page's cards.
// done is true once the session has accepted its fill.
func (s *Session) evaluatePage(ctx context.Context, html string) (done bool, err error) {
	s.state = stateExtractingCards

	cards, err := s.extractor.Extract(html, s.profile)
	if err != nil {
		if errors.Is(err, extract.ErrNoContainer) {
			s.log.Info().Int("page", s.page).Msg("No product container, treating as end of results")
			return true, nil
		}
		return false, err
	}

	if s.met != nil {
		s.met.CardsExtracted.WithLabelValues(string(s.target.Site)).Add(float64(len(cards)))
	}

	s.state = stateEvaluating
	site := string(s.target.Site)

	for _, raw := range cards {
		p, ok := product.Normalize(s.profile, s.target.Category, raw)
		if !ok {
			if s.met != nil {
				s.met.CardsDiscarded.WithLabelValues(site).Inc()
			}
			continue
		}

		// Duplicate cards on one page resolve to the same URL.
		if _, dup := s.seen[p.URL]; dup {
			continue
		}

		decision := s.gate.Evaluate(ctx, p)
		if !decision.Accepted {
			if s.met != nil {
				s.met.ProductsRejected.WithLabelValues(decision.Reason).Inc()
				if decision.Reason == gate.ReasonDuplicate {
					s.met.DedupHits.WithLabelValues(site).Inc()
				}
			}
			continue
		}

		// Register and accept together; an accepted product must never
		// be marked seen without also being emitted.
		s.registry.Register(ctx, p.URL)
		s.seen[p.URL] = struct{}{}
		s.accepted = append(s.accepted, p)

		if s.met != nil {
			s.met.ProductsAccepted.WithLabelValues(site, p.Category).Inc()
		}
		s.log.Info().Str("url", p.URL).Int("discount_price", p.DiscountPrice).Msg("Deal accepted")

		if len(s.accepted) >= s.maxProducts {
			s.log.Info().Int("accepted", len(s.accepted)).Msg("Product cap reached")
			return true, nil
		}
	}

	return false, nil
}

func (s *Session) wait(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	domain, err := shared.GetDomain(s.target.URL)
	if err != nil {
		return
	}
	if err := s.limiter.Wait(ctx, domain, s.fetchDelay); err != nil {
		s.log.Warn().Err(err).Msg("Rate limiter wait interrupted")
	}
}

func (s *Session) fetchFailed(stage string, err error) Result {
	if s.met != nil {
		s.met.FetchErrors.WithLabelValues(string(s.target.Site), stage).Inc()
	}
	s.log.Error().Err(err).Str("stage", stage).Int("page", s.page).Msg("Session fetch failed")

	// A fetch cut short by the session deadline or cancellation is an
	// abort, not a site failure. Accepted products still ship either way.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return s.finish(StatusAborted, err)
	}
	return s.finish(StatusPartialFailure, err)
}

func (s *Session) finish(status Status, err error) Result {
	s.state = stateIdle
	if s.met != nil {
		s.met.SessionsFinished.WithLabelValues(string(s.target.Site), string(status)).Inc()
	}
	return Result{
		Target:   s.target,
		Status:   status,
		Products: s.accepted,
		Pages:    s.page,
		Err:      err,
	}
}

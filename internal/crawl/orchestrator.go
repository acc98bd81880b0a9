package crawl

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// PagerFactory builds a fresh pager per session; every session owns its
// own browser or HTTP transport. The profile lets the factory pick a
// plain HTTP pager for sites that render server-side.
type PagerFactory func(ctx context.Context, profile sites.Profile) (shared.Pager, error)

// Notifier consumes the merged batch of accepted products.
type Notifier interface {
	Send(ctx context.Context, batch []product.Product) error
}

// FailureSink records targets whose sessions did not fully succeed.
type FailureSink interface {
	Record(ctx context.Context, t Target, reason string) error
}

// Archiver stores product images off-site.
type Archiver interface {
	Archive(ctx context.Context, p product.Product) (string, error)
}

// Orchestrator runs one session per configured target and merges their
// outputs into a single batch for the notifier. Sessions are fully
// independent: one target failing never blocks or cancels its siblings.
type Orchestrator struct {
	targets  []Target
	pagers   PagerFactory
	session  SessionConfig
	notifier Notifier
	failures FailureSink
	archiver Archiver
}

func NewOrchestrator(targets []Target, pagers PagerFactory, session SessionConfig) *Orchestrator {
	return &Orchestrator{
		targets: targets,
		pagers:  pagers,
		session: session,
	}
}

func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notifier = n
	return o
}

func (o *Orchestrator) WithFailureSink(f FailureSink) *Orchestrator {
	o.failures = f
	return o
}

func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// Run crawls all targets concurrently, waits for every session to reach a
// terminal state, and hands the merged batch to the notifier. On ctx
// cancellation in-flight sessions flush their partial results rather than
// being killed mid-page.
func (o *Orchestrator) Run(ctx context.Context) []Result {
	runID := uuid.NewString()[:8]
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Int("targets", len(o.targets)).Msg("Starting crawl run")

	results := make([]Result, len(o.targets))
	var wg sync.WaitGroup

	for i, target := range o.targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = o.runTarget(ctx, t)
		}(i, target)
	}

	wg.Wait()

	batch := o.merge(ctx, results)
	logger.Info().Int("accepted", len(batch)).Msg("Crawl run finished")

	if o.archiver != nil {
		o.archiveImages(ctx, batch)
	}

	if o.notifier != nil && len(batch) > 0 {
		if err := o.notifier.Send(ctx, batch); err != nil {
			logger.Error().Err(err).Msg("Notification delivery incomplete")
		}
	}

	return results
}

func (o *Orchestrator) runTarget(ctx context.Context, t Target) Result {
	profile, ok := sites.Lookup(t.Site)
	if !ok {
		return Result{Target: t, Status: StatusAborted, Err: errUnknownSite(t.Site)}
	}

	pager, err := o.pagers(ctx, profile)
	if err != nil {
		log.Error().Err(err).Str("site", string(t.Site)).Msg("Failed to build pager")
		return Result{Target: t, Status: StatusAborted, Err: err}
	}
	// Close with a background context so a cancelled run still releases
	// the browser.
	defer pager.Close(context.Background())

	cfg := o.session
	cfg.Pager = pager

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	return NewSession(t, profile, cfg).Run(ctx)
}

// merge flattens accepted products across sessions and records failures.
func (o *Orchestrator) merge(ctx context.Context, results []Result) []product.Product {
	var batch []product.Product

	for _, res := range results {
		batch = append(batch, res.Products...)

		if res.Status != StatusDone && o.failures != nil {
			reason := string(res.Status)
			if res.Err != nil {
				reason = res.Err.Error()
			}
			if err := o.failures.Record(ctx, res.Target, reason); err != nil {
				log.Error().Err(err).Msg("Failed to record session failure")
			}
		}
	}

	return batch
}

func (o *Orchestrator) archiveImages(ctx context.Context, batch []product.Product) {
	for _, p := range batch {
		if p.ImageURL == "" {
			continue
		}
		if _, err := o.archiver.Archive(ctx, p); err != nil {
			log.Warn().Err(err).Str("url", p.ImageURL).Msg("Image archive failed")
		}
	}
}

package cmdfactory

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/classify"
	"github.com/abdur-rab-khan/aladdin-bot/internal/crawl"
	"github.com/abdur-rab-khan/aladdin-bot/internal/dedup"
	"github.com/abdur-rab-khan/aladdin-bot/internal/extract"
	"github.com/abdur-rab-khan/aladdin-bot/internal/gate"
	"github.com/abdur-rab-khan/aladdin-bot/internal/metrics"
	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
)

type CrawlerFactory struct {
	RDB          *redis.Client
	Cache        *dedup.Cache
	Metrics      *metrics.CrawlMetrics
	Orchestrator *crawl.Orchestrator
}

// CrawlerNew wires every collaborator from the flag config, mirroring how
// the pieces depend on each other: store → cache → gate → sessions.
func CrawlerNew(cfg *Config) (*CrawlerFactory, error) {
	targets, err := ParseTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}

	rdb := newRedis(cfg)
	cache := newDedupCache(cfg, rdb)
	policy := newRetryPolicy(cfg)

	met := metrics.NewMetrics()
	go metrics.StartNewMetricsServer(":" + strconv.Itoa(cfg.MetricsPort))
	go met.MonitorDedupWindows(context.Background(), cache)

	dealGate := gate.New(nil, cacheChecker{cache}, timedClassifier{newClassifier(cfg), met}, policy)

	session := crawl.SessionConfig{
		Extractor:   extract.NewEngine(),
		Gate:        dealGate,
		Registry:    cacheRegistry{cache},
		Limiter:     newRateLimiter(rdb),
		Robots:      newRobots(cfg),
		Metrics:     met,
		Retry:       policy,
		MaxProducts: cfg.MaxProducts,
		MaxPages:    cfg.MaxPages,
		FetchDelay:  cfg.FetchDelay,
		Timeout:     cfg.SessionTimeout,
	}

	orch := crawl.NewOrchestrator(targets, newPagerFactory(cfg), session).
		WithFailureSink(crawl.NewRedisFailureSink(rdb))

	if n := newNotifier(cfg); n != nil {
		orch = orch.WithNotifier(n)
	}
	if a := newArchiver(cfg); a != nil {
		orch = orch.WithArchiver(a)
	}

	log.Info().Int("targets", len(targets)).Msg("Crawler wired")

	return &CrawlerFactory{
		RDB:          rdb,
		Cache:        cache,
		Metrics:      met,
		Orchestrator: orch,
	}, nil
}

// Thin adapters so gate and crawl depend on small interfaces instead of
// the concrete cache.
type cacheChecker struct{ c *dedup.Cache }

func (a cacheChecker) Exists(ctx context.Context, url string) bool { return a.c.Exists(ctx, url) }

type cacheRegistry struct{ c *dedup.Cache }

func (a cacheRegistry) Register(ctx context.Context, url string) { a.c.Register(ctx, url) }

// timedClassifier records model latency around every classification call.
type timedClassifier struct {
	inner *classify.Client
	met   *metrics.CrawlMetrics
}

func (t timedClassifier) Classify(ctx context.Context, p product.Product) (string, error) {
	start := time.Now()
	verdict, err := t.inner.Classify(ctx, p)
	t.met.ClassifierDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	return verdict, err
}

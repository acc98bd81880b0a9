package cmdfactory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/classify"
	"github.com/abdur-rab-khan/aladdin-bot/internal/crawl"
	"github.com/abdur-rab-khan/aladdin-bot/internal/dedup"
	"github.com/abdur-rab-khan/aladdin-bot/internal/fetch"
	"github.com/abdur-rab-khan/aladdin-bot/internal/limiter"
	"github.com/abdur-rab-khan/aladdin-bot/internal/notify"
	"github.com/abdur-rab-khan/aladdin-bot/internal/retry"
	"github.com/abdur-rab-khan/aladdin-bot/internal/robots"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
	"github.com/abdur-rab-khan/aladdin-bot/internal/storage"
)

type Config struct {
	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Crawl targets as "site:category:url".
	Targets []string

	// Retry / backoff
	MaxAttempts int
	BaseBackoff time.Duration

	// Dedup cache
	CacheTTL       time.Duration
	RotationWindow time.Duration

	// Session limits
	MaxProducts    int
	MaxPages       int
	FetchDelay     time.Duration
	SessionTimeout time.Duration

	// Fetching
	Headless      bool
	StaticFetch   bool
	RespectRobots bool

	// Collaborators
	ClassifierURL  string
	TelegramToken  string
	TelegramChatID string

	// Image archive (MinIO / S3)
	ArchiveImages bool
	S3Endpoint    string
	S3Bucket      string
	S3User        string
	S3Password    string

	MetricsPort int
}

// ParseTargets turns "site:category:url" triples into crawl targets.
func ParseTargets(values []string) ([]crawl.Target, error) {
	var targets []crawl.Target

	for _, raw := range values {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid target %q, want site:category:url", raw)
		}

		site := sites.Site(parts[0])
		if _, ok := sites.Lookup(site); !ok {
			return nil, fmt.Errorf("unknown site %q in target %q", parts[0], raw)
		}

		targets = append(targets, crawl.Target{
			Site:     site,
			Category: parts[1],
			URL:      parts[2],
		})
	}

	return targets, nil
}

func newRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func newRetryPolicy(cfg *Config) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseBackoff > 0 {
		p.Base = cfg.BaseBackoff
	}
	return p
}

func newDedupCache(cfg *Config, rdb *redis.Client) *dedup.Cache {
	return dedup.New(dedup.NewRedisStore(rdb), cfg.CacheTTL, cfg.RotationWindow)
}

func newClassifier(cfg *Config) *classify.Client {
	return classify.NewClient(cfg.ClassifierURL, 15*time.Second)
}

// newPagerFactory picks the transport per site: a browser for profiles
// that render listings client-side, plain HTTP otherwise. --static forces
// HTTP everywhere.
func newPagerFactory(cfg *Config) crawl.PagerFactory {
	return func(ctx context.Context, profile sites.Profile) (shared.Pager, error) {
		if cfg.StaticFetch || !profile.NeedsBrowser {
			return fetch.NewStaticPager(10 * time.Second), nil
		}
		return fetch.NewBrowser(ctx, cfg.Headless)
	}
}

func newRateLimiter(rdb *redis.Client) shared.RateLimiter {
	return limiter.NewRedisRateLimiter(rdb)
}

func newRobots(cfg *Config) *robots.Checker {
	if !cfg.RespectRobots {
		return nil
	}
	return robots.NewChecker(shared.RandomUserAgent(), 5*time.Second)
}

func newNotifier(cfg *Config) crawl.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		log.Warn().Msg("Telegram credentials missing, notifications disabled")
		return nil
	}
	return notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
}

func newArchiver(cfg *Config) crawl.Archiver {
	if !cfg.ArchiveImages {
		return nil
	}
	archive, err := storage.NewImageArchive(context.Background(), cfg.S3Bucket, cfg.S3Endpoint, cfg.S3User, cfg.S3Password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image archive")
	}
	return archive
}

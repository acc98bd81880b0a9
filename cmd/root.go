package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/abdur-rab-khan/aladdin-bot/internal/cmdfactory"
	"github.com/abdur-rab-khan/aladdin-bot/internal/crawl"
)

var cfg cmdfactory.Config

func newCmdRootCrawler() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawler [flags]",
		Short: "Aladdin deal crawler CLI",
		Long:  `Crawl marketplace listings and forward fresh deals to the notification channel.`,
		Example: heredoc.Doc(`
			$ crawler --target "amazon:t-shirt:https://www.amazon.in/s?k=t-shirt"
			$ crawler --target "flipkart:jeans:https://www.flipkart.com/search?q=jeans" --redis-addr "redis:6379"
		`),
		Annotations: map[string]string{
			"versionInfo": "1.0",
		},
		RunE: func(c *cobra.Command, args []string) error {
			f, err := cmdfactory.CrawlerNew(&cfg)
			if err != nil {
				return err
			}

			// Let in-flight sessions flush partial results on shutdown.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results := f.Orchestrator.Run(ctx)
			for _, res := range results {
				log.Info().
					Str("site", string(res.Target.Site)).
					Str("category", res.Target.Category).
					Str("status", string(res.Status)).
					Int("products", len(res.Products)).
					Int("pages", res.Pages).
					Msg("Session finished")
			}

			if allAborted(results) {
				log.Error().Msg("Every session aborted")
			}
			return nil
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().StringSliceVar(&cfg.Targets, "target", []string{}, "Crawl target as site:category:url (repeatable)")
	cmd.Flags().IntVar(&cfg.MetricsPort, "metrics-port", 9190, "Port for Metrics server")

	cmd.PersistentFlags().Bool("help", false, "Show help for crawler command")
	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	// Redis
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Address of Redis server")
	cmd.Flags().StringVar(&cfg.RedisPassword, "redis-pass", "", "Password of Redis server")
	cmd.Flags().IntVar(&cfg.RedisDB, "redis-db", 0, "Redis DB number")

	// Retry / backoff
	cmd.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", 3, "Fetch retry attempts per page")
	cmd.Flags().DurationVar(&cfg.BaseBackoff, "base-backoff", time.Second, "Base backoff between retries")

	// Dedup cache
	cmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", 7*24*time.Hour, "How long a dedup window is retained")
	cmd.Flags().DurationVar(&cfg.RotationWindow, "rotation-window", 24*time.Hour, "How often the dedup window key rotates")

	// Session limits
	cmd.Flags().IntVar(&cfg.MaxProducts, "max-products", 0, "Accepted products per session before it stops (0 = per-category default)")
	cmd.Flags().IntVar(&cfg.MaxPages, "max-pages", 10, "Page ceiling per session")
	cmd.Flags().DurationVar(&cfg.FetchDelay, "fetch-delay", 2*time.Second, "Minimum delay between fetches per domain")
	cmd.Flags().DurationVar(&cfg.SessionTimeout, "session-timeout", 10*time.Minute, "Hard bound on one session's duration")

	// Fetching
	cmd.Flags().BoolVar(&cfg.Headless, "headless", true, "Run the browser headless")
	cmd.Flags().BoolVar(&cfg.StaticFetch, "static", false, "Fetch with plain HTTP instead of a browser")
	cmd.Flags().BoolVar(&cfg.RespectRobots, "respect-robots", false, "Honor robots.txt before crawling a target")

	// Collaborators
	cmd.Flags().StringVar(&cfg.ClassifierURL, "classifier-url", "http://localhost:8500/predict", "Deal-quality classifier endpoint")
	cmd.Flags().StringVar(&cfg.TelegramToken, "telegram-token", "", "Telegram bot token")
	cmd.Flags().StringVar(&cfg.TelegramChatID, "telegram-chat", "", "Telegram chat ID")

	// Image archive (MinIO / S3)
	cmd.Flags().BoolVar(&cfg.ArchiveImages, "archive-images", false, "Archive product images to object storage")
	cmd.Flags().StringVar(&cfg.S3Endpoint, "s3-endpoint", "http://localhost:9000", "S3 Endpoint URL")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", "product-images", "S3 Bucket name")
	cmd.Flags().StringVar(&cfg.S3User, "s3-user", "admin", "S3 Access Key / User")
	cmd.Flags().StringVar(&cfg.S3Password, "s3-pass", "password", "S3 Secret Key / Password")
}

func allAborted(results []crawl.Result) bool {
	for _, res := range results {
		if res.Status != crawl.StatusAborted {
			return false
		}
	}
	return len(results) > 0
}

var cmdCrawler = newCmdRootCrawler()

func ExecuteCrawler() {
	if err := cmdCrawler.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Error while executing crawler")
	}
}

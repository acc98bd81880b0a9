package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type CrawlMetrics struct {
	PagesFetched   *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	CardsExtracted *prometheus.CounterVec

	ProductsAccepted *prometheus.CounterVec
	ProductsRejected *prometheus.CounterVec
	CardsDiscarded   *prometheus.CounterVec
	DedupHits        *prometheus.CounterVec

	ClassifierDuration *prometheus.HistogramVec

	SessionsFinished *prometheus.CounterVec
	LiveDedupWindows prometheus.Gauge
}

func NewMetrics() *CrawlMetrics {
	return &CrawlMetrics{
		PagesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_fetched_total",
				Help: "Total listing pages fetched successfully",
			},
			[]string{"site"},
		),
		FetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_errors_total",
				Help: "Total page fetch and pagination failures after retries",
			},
			[]string{"site", "stage"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "crawler_fetch_duration_seconds",
				Help: "Time taken to fetch one listing page",
			},
			[]string{"site"},
		),
		CardsExtracted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_cards_extracted_total",
				Help: "Raw listing cards selected off fetched pages",
			},
			[]string{"site"},
		),
		ProductsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_products_accepted_total",
				Help: "Products that passed the deal gate",
			},
			[]string{"site", "category"},
		),
		ProductsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_products_rejected_total",
				Help: "Products rejected by the deal gate",
			},
			[]string{"reason"},
		),
		CardsDiscarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_cards_discarded_total",
				Help: "Cards dropped during normalization for missing or malformed fields",
			},
			[]string{"site"},
		),
		DedupHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_dedup_hits_total",
				Help: "URLs rejected because a rotation window already held them",
			},
			[]string{"site"},
		),
		ClassifierDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "crawler_classifier_duration_seconds",
				Help: "Time taken by the deal-quality classifier",
			},
			[]string{},
		),
		SessionsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_sessions_finished_total",
				Help: "Crawl sessions by terminal status",
			},
			[]string{"site", "status"},
		),
		LiveDedupWindows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_dedup_windows_live",
				Help: "Rotation windows currently present in the dedup store",
			},
		),
	}
}

func StartNewMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Msgf("Metrics server starting on %s", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

// WindowCounter is satisfied by the dedup cache.
type WindowCounter interface {
	CountWindows(ctx context.Context) (int, error)
}

func (m *CrawlMetrics) MonitorDedupWindows(ctx context.Context, counter WindowCounter) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := counter.CountWindows(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to count dedup windows")
				continue
			}
			m.LiveDedupWindows.Set(float64(n))
		}
	}
}

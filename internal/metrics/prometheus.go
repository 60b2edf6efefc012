package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandpulse_scrapes_total",
			Help: "Total scrape attempts by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandpulse_scrape_duration_seconds",
			Help:    "End-to-end duration of one browser query",
			Buckets: []float64{10, 30, 60, 120, 180, 300, 600},
		},
		[]string{"platform"},
	)

	ClaimConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandpulse_claim_conflicts_total",
			Help: "Prompt claims lost to another worker or a fresh response",
		},
		[]string{"platform"},
	)

	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandpulse_auth_failures_total",
			Help: "Sessions that ended with authentication required",
		},
		[]string{"platform"},
	)

	BrandsDetected = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandpulse_brands_detected",
			Help:    "Brands detected per completed response",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
		[]string{"platform"},
	)

	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandpulse_enrichment_total",
			Help: "Enrichment attempts by outcome",
		},
		[]string{"status"},
	)

	ScoreCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandpulse_score_cache_hits_total",
			Help: "Visibility score cache hits and misses",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(ScrapesTotal)
	prometheus.MustRegister(ScrapeDuration)
	prometheus.MustRegister(ClaimConflicts)
	prometheus.MustRegister(AuthFailures)
	prometheus.MustRegister(BrandsDetected)
	prometheus.MustRegister(EnrichmentTotal)
	prometheus.MustRegister(ScoreCacheHits)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

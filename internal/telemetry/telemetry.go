// Package telemetry exposes Prometheus collectors for the scraper.
package telemetry

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal          *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec
	retriesTotal           prometheus.Counter
	itemsScrapedTotal      prometheus.Counter
	itemsDroppedTotal      *prometheus.CounterVec
	urlsFailedTotal        prometheus.Counter
	activeFetches          prometheus.Gauge
	proxyRotationsTotal    prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_requests_total",
				Help: "Logical HTTP calls issued, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		requestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_request_duration_seconds",
				Help:    "Latency of logical HTTP calls, labeled by host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		retriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_retries_total",
				Help: "Retry attempts performed inside logical HTTP calls.",
			},
		)

		itemsScrapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_items_scraped_total",
				Help: "Items accepted into the result buffer.",
			},
		)

		itemsDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_items_dropped_total",
				Help: "Items dropped before the result buffer, labeled by reason.",
			},
			[]string{"reason"},
		)

		urlsFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_urls_failed_total",
				Help: "URL branches abandoned after a terminal fetch failure.",
			},
		)

		activeFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_fetches",
				Help: "URL tasks currently holding a concurrency slot.",
			},
		)

		proxyRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_proxy_rotations_total",
				Help: "Times the proxy manager switched to a fresh proxy.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a raw URL, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observers are no-ops until Init runs, so packages can be exercised in
// isolation without registering collectors.

// ObserveRequest records one logical HTTP call outcome.
func ObserveRequest(host string, success bool, duration time.Duration) {
	if requestsTotal == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	requestsTotal.WithLabelValues(host, outcome).Inc()
	requestDurationSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRetry counts a single retry attempt.
func ObserveRetry() {
	if retriesTotal == nil {
		return
	}
	retriesTotal.Inc()
}

// ObserveItemScraped counts an accepted item.
func ObserveItemScraped() {
	if itemsScrapedTotal == nil {
		return
	}
	itemsScrapedTotal.Inc()
}

// ObserveItemDropped counts a dropped item by reason.
func ObserveItemDropped(reason string) {
	if itemsDroppedTotal == nil {
		return
	}
	itemsDroppedTotal.WithLabelValues(reason).Inc()
}

// ObserveURLFailed counts an abandoned URL branch.
func ObserveURLFailed() {
	if urlsFailedTotal == nil {
		return
	}
	urlsFailedTotal.Inc()
}

// IncActiveFetches increments the in-flight task gauge.
func IncActiveFetches() {
	if activeFetches == nil {
		return
	}
	activeFetches.Inc()
}

// DecActiveFetches decrements the in-flight task gauge.
func DecActiveFetches() {
	if activeFetches == nil {
		return
	}
	activeFetches.Dec()
}

// ObserveProxyRotation counts a proxy switch.
func ObserveProxyRotation() {
	if proxyRotationsTotal == nil {
		return
	}
	proxyRotationsTotal.Inc()
}

// Package metrics exposes Prometheus collectors for the signals service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal          *prometheus.CounterVec
	fetchBytesTotal             *prometheus.CounterVec
	scrapesTotal                *prometheus.CounterVec
	pdfFetchesTotal             *prometheus.CounterVec
	analysisCallsTotal          *prometheus.CounterVec
	runsTotal                   *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	activeWorkers               prometheus.Gauge
	rateLimitDelaysSeconds      *prometheus.HistogramVec
	analysisCallDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_fetch_attempts_total",
				Help: "Total number of page GET attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_fetch_bytes_total",
				Help: "Total number of body bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_scrapes_total",
				Help: "Total number of targets scraped, labeled by terminal status.",
			},
			[]string{"status"},
		)

		pdfFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_pdf_fetches_total",
				Help: "Total number of linked PDF fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		analysisCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_analysis_calls_total",
				Help: "Total number of text analysis calls, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		analysisCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signals_analysis_call_duration_seconds",
				Help:    "Histogram of text analysis latencies, labeled by source.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"source"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_runs_total",
				Help: "Total number of pipeline runs, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signals_active_workers",
				Help: "Number of workers currently scraping a target.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signals_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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

// ObserveFetchAttempt records one page GET attempt.
func ObserveFetchAttempt(site, outcome string, bytesFetched int) {
	if fetchAttemptsTotal == nil {
		return
	}
	sanitizedSite := SanitizeSite(site)
	fetchAttemptsTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveScrape increments the terminal scrape counter.
func ObserveScrape(status string) {
	if scrapesTotal == nil {
		return
	}
	scrapesTotal.WithLabelValues(status).Inc()
}

// ObservePDFFetch records a linked PDF fetch outcome.
func ObservePDFFetch(outcome string) {
	if pdfFetchesTotal == nil {
		return
	}
	pdfFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisCall records one text analysis call.
func ObserveAnalysisCall(source, outcome string, duration time.Duration) {
	if analysisCallsTotal == nil {
		return
	}
	analysisCallsTotal.WithLabelValues(source, outcome).Inc()
	analysisCallDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveRun increments the run counter for the given status.
func ObserveRun(status string) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

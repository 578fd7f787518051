package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors of one scraper.
type Metrics struct {
	Registry *prometheus.Registry

	PageRequests  *prometheus.CounterVec
	PageFetchTime prometheus.Histogram
	PageLinks     prometheus.Histogram
	FetchErrors   *prometheus.CounterVec

	Groups    prometheus.Counter
	GroupTime prometheus.Histogram

	LinksWritten    prometheus.Counter
	TargetRemaining prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_page_requests_total",
			Help: "Search page requests by outcome (started, completed, failed).",
		}, []string{"outcome"}),
		PageFetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_page_fetch_seconds",
			Help:    "Latency of a single search page fetch.",
			Buckets: prometheus.DefBuckets,
		}),
		// A full search page carries 60 links.
		PageLinks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_page_links",
			Help:    "Image links extracted from one successfully fetched page.",
			Buckets: prometheus.LinearBuckets(0, 10, 7),
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_errors_total",
			Help: "Failed page fetches by error type.",
		}, []string{"error_type"}),
		Groups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_groups_total",
			Help: "Page groups fetched to completion.",
		}),
		GroupTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_group_seconds",
			Help:    "Wall time from launching a group to its slowest page.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		LinksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_links_written_total",
			Help: "Image links accepted by storage.",
		}),
		TargetRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_target_remaining",
			Help: "Links still needed to reach the requested count.",
		}),
	}

	m.Registry.MustRegister(
		m.PageRequests, m.PageFetchTime, m.PageLinks, m.FetchErrors,
		m.Groups, m.GroupTime, m.LinksWritten, m.TargetRemaining,
	)
	return m
}

// IncRequest counts a page request reaching outcome.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.PageRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.PageFetchTime.Observe(d.Seconds())
}

// ObservePageLinks records how many links a fetched page yielded.
func (m *Metrics) ObservePageLinks(n int) {
	if m == nil {
		return
	}
	m.PageLinks.Observe(float64(n))
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(errorType).Inc()
}

// ObserveGroup counts a finished group and its wall time.
func (m *Metrics) ObserveGroup(d time.Duration) {
	if m == nil {
		return
	}
	m.Groups.Inc()
	m.GroupTime.Observe(d.Seconds())
}

// AddItems adds n accepted links and lowers the remaining target.
func (m *Metrics) AddItems(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksWritten.Add(float64(n))
	m.TargetRemaining.Sub(float64(n))
}

// SetTarget resets the remaining gauge at the start of a run.
func (m *Metrics) SetTarget(n int) {
	if m == nil {
		return
	}
	m.TargetRemaining.Set(float64(n))
}

// Package metrics exposes scheduler counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoxdcc"

// Metrics owns a private registry so several daemons (or tests) never clash
// on the default one. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	refreshCycles   *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	itemsParsed     *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	downloadBytes   *prometheus.CounterVec
	untrusted       *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// New builds the collectors and registers Go runtime metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		refreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Packlist refresh cycles by outcome",
		}, []string{"packlist", "result"}),
		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and filtering a packlist",
			Buckets:   prometheus.DefBuckets,
		}, []string{"packlist"}),
		itemsParsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_parsed_total",
			Help:      "Packlist lines accepted by the parser",
		}, []string{"packlist"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download tasks by final status",
		}, []string{"packlist", "status"}),
		downloadBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes received for completed downloads",
		}, []string{"packlist"}),
		untrusted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "untrusted_offers_total",
			Help:      "Offers refused because the sender was not trusted",
		}, []string{"packlist"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands queued for the chat client",
		}, []string{"kind"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PacklistGauges reads live scheduler numbers for one packlist.
type PacklistGauges struct {
	Ongoing  func() int
	Awaiting func() int
	Cursor   func() int
}

// RegisterPacklist adds gauges that sample the packlist on every scrape.
func (m *Metrics) RegisterPacklist(name string, gauges PacklistGauges) {
	if m == nil {
		return
	}
	factory := promauto.With(m.registry)
	labels := prometheus.Labels{"packlist": name}
	add := func(metric, help string, fn func() int) {
		if fn == nil {
			return
		}
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(fn()) })
	}
	add("downloads_ongoing", "Pack transfers holding a slot", gauges.Ongoing)
	add("downloads_awaiting", "Queued packs waiting for a slot", gauges.Awaiting)
	add("packlist_cursor", "Highest pack number seen", gauges.Cursor)
}

// ObserveRefresh records one refresh cycle.
func (m *Metrics) ObserveRefresh(packlist string, parsed int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshCycles.WithLabelValues(packlist, result).Inc()
	m.refreshDuration.WithLabelValues(packlist).Observe(elapsed.Seconds())
	if parsed > 0 {
		m.itemsParsed.WithLabelValues(packlist).Add(float64(parsed))
	}
}

// DownloadFinished records a task reaching a final or intermediate status.
func (m *Metrics) DownloadFinished(packlist, status string, size int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(packlist, status).Inc()
	if size > 0 {
		m.downloadBytes.WithLabelValues(packlist).Add(float64(size))
	}
}

// UntrustedOffer counts a refused offer.
func (m *Metrics) UntrustedOffer(packlist string) {
	if m == nil {
		return
	}
	m.untrusted.WithLabelValues(packlist).Inc()
}

// CommandQueued counts a command handed to the chat client.
func (m *Metrics) CommandQueued(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

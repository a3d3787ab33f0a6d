package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bundle load sources
const (
	SourceLive  = "live"
	SourceCache = "cache"
	SourceEmpty = "empty"
)

// Metrics holds the player's Prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps the core packages usable without a registry.
type Metrics struct {
	registry *prometheus.Registry

	BundleLoadsTotal    *prometheus.CounterVec
	FetchFailures       prometheus.Gauge
	ReloadsTotal        *prometheus.CounterVec
	ModeSwitchesTotal   *prometheus.CounterVec
	ScriptErrorsTotal   prometheus.Counter
	WeatherFetchesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on registry
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		registry: registry,

		BundleLoadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pano_bundle_loads_total",
				Help: "Total number of bundle loads by source",
			},
			[]string{"source"}, // source: live, cache, empty
		),

		FetchFailures: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "pano_bundle_consecutive_failures",
				Help: "Consecutive failed bundle fetches since the last success",
			},
		),

		ReloadsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pano_reloads_total",
				Help: "Guarded reload requests by reason and outcome",
			},
			[]string{"reason", "outcome"}, // outcome: reloaded, cooldown, daily_limit
		),

		ModeSwitchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pano_mode_switches_total",
				Help: "Total number of rotation mode switches by target mode",
			},
			[]string{"mode"},
		),

		ScriptErrorsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "pano_script_errors_total",
				Help: "Uncaught script errors reported by the display",
			},
		),

		WeatherFetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pano_weather_fetches_total",
				Help: "Weather refreshes by status",
			},
			[]string{"status"}, // status: success, error
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordBundleLoad records a completed bundle load
func (m *Metrics) RecordBundleLoad(source string) {
	if m == nil {
		return
	}
	m.BundleLoadsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) SetFetchFailures(n int) {
	if m == nil {
		return
	}
	m.FetchFailures.Set(float64(n))
}

// RecordReload records a guarded reload decision
func (m *Metrics) RecordReload(reason, outcome string) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(reason, outcome).Inc()
}

func (m *Metrics) RecordModeSwitch(mode string) {
	if m == nil {
		return
	}
	m.ModeSwitchesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordScriptError() {
	if m == nil {
		return
	}
	m.ScriptErrorsTotal.Inc()
}

func (m *Metrics) RecordWeatherFetch(status string) {
	if m == nil {
		return
	}
	m.WeatherFetchesTotal.WithLabelValues(status).Inc()
}

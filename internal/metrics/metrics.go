// Package metrics provides Prometheus metrics for tdata-reader.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "tdata_reader"
)

// Metrics contains all Prometheus metrics for the reader.
type Metrics struct {
	// Envelope metrics
	EnvelopesOpened  prometheus.Counter
	EnvelopeFailures *prometheus.CounterVec
	EnvelopeBytes    prometheus.Counter

	// Encrypted block metrics
	BlocksDecrypted prometheus.Counter
	DecryptFailures *prometheus.CounterVec

	// Record metrics
	SettingsParsed  prometheus.Counter
	SettingsSkipped prometheus.Counter
	MapRecords      prometheus.Counter

	// Session metrics
	AccountsRead prometheus.Gauge
	ThemesRead   prometheus.Counter
	KeysDerived  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EnvelopesOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_opened_total",
			Help:      "Total number of file envelopes opened and verified",
		}),
		EnvelopeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_failures_total",
			Help:      "Envelope open failures by step",
		}, []string{"step"}),
		EnvelopeBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_bytes_total",
			Help:      "Total envelope body bytes read",
		}),
		BlocksDecrypted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_decrypted_total",
			Help:      "Total encrypted blocks decrypted and authenticated",
		}),
		DecryptFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_failures_total",
			Help:      "Encrypted block failures by step",
		}, []string{"step"}),
		SettingsParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_parsed_total",
			Help:      "Settings records parsed into typed values",
		}),
		SettingsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_skipped_total",
			Help:      "Recognised legacy settings records skipped",
		}),
		MapRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_records_total",
			Help:      "Account map records decoded",
		}),
		AccountsRead: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts_read",
			Help:      "Accounts instantiated by the last boot sequence",
		}),
		ThemesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "themes_read_total",
			Help:      "Theme bundles decoded",
		}),
		KeysDerived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_derived_total",
			Help:      "Auth keys derived by regime",
		}, []string{"regime"}),
	}
}

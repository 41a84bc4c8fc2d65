package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "plugwatch_"

var (
	registerOnce sync.Once

	signalsReceived  *prometheus.CounterVec
	signalsAccepted  *prometheus.CounterVec
	signalsDebounced *prometheus.CounterVec
	storeErrors      prometheus.Counter
	exportsTotal     *prometheus.CounterVec
)

// Init registers the signal-path metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		signalsReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "signals_received_total",
				Help: "Raw power signals received by kind",
			},
			[]string{"kind"},
		)
		signalsAccepted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "signals_accepted_total",
				Help: "Signals accepted past the debounce filter by kind",
			},
			[]string{"kind"},
		)
		signalsDebounced = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "signals_debounced_total",
				Help: "Signals dropped by the debounce filter by kind",
			},
			[]string{"kind"},
		)
		storeErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_errors_total",
				Help: "Interval store read/write failures",
			},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "CSV exports by scope",
			},
			[]string{"scope"},
		)

		prometheus.MustRegister(
			signalsReceived,
			signalsAccepted,
			signalsDebounced,
			storeErrors,
			exportsTotal,
		)
	})
}

// The helpers tolerate an uninitialized package so unit tests can exercise
// the signal path without touching the global registry.

func SignalReceived(kind string) {
	if signalsReceived != nil {
		signalsReceived.WithLabelValues(kind).Inc()
	}
}

func SignalAccepted(kind string) {
	if signalsAccepted != nil {
		signalsAccepted.WithLabelValues(kind).Inc()
	}
}

func SignalDebounced(kind string) {
	if signalsDebounced != nil {
		signalsDebounced.WithLabelValues(kind).Inc()
	}
}

func StoreError() {
	if storeErrors != nil {
		storeErrors.Inc()
	}
}

func ExportBuilt(scope string) {
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(scope).Inc()
	}
}

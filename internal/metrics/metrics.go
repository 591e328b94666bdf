// Package metrics exposes Prometheus collectors for the browser session and
// message exchanges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wrapperai"

// Exchange outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeNotReady = "not_ready"
)

var (
	exchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exchanges_total",
		Help:      "Message exchanges by target and outcome.",
	}, []string{"target", "outcome"})

	exchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "exchange_duration_seconds",
		Help:      "Time from typing the message to a settled response.",
		Buckets:   []float64{2, 4, 6, 10, 15, 20, 30, 45, 60, 90, 120, 180},
	}, []string{"target"})

	stabilizationTicks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stabilization_ticks",
		Help:      "Poll ticks needed before the response text settled.",
		Buckets:   prometheus.LinearBuckets(3, 3, 15),
	})

	gateWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "exchange_gate_waiting",
		Help:      "Callers blocked on the exchange gate.",
	})

	sessionReady = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_ready",
		Help:      "1 when the browser session is authenticated and ready.",
	})

	setupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "setups_total",
		Help:      "Session setup attempts by target and outcome.",
	}, []string{"target", "outcome"})
)

// ObserveExchange records a finished exchange.
func ObserveExchange(target, outcome string, d time.Duration, ticks int) {
	exchangesTotal.WithLabelValues(target, outcome).Inc()
	if outcome == OutcomeOK {
		exchangeDuration.WithLabelValues(target).Observe(d.Seconds())
		stabilizationTicks.Observe(float64(ticks))
	}
}

// ObserveSetup records a setup attempt.
func ObserveSetup(target, outcome string) {
	setupsTotal.WithLabelValues(target, outcome).Inc()
}

// GateWaiting adjusts the number of callers waiting for the exchange gate.
func GateWaiting(delta float64) {
	gateWaiting.Add(delta)
}

// SetSessionReady flips the readiness gauge.
func SetSessionReady(ready bool) {
	if ready {
		sessionReady.Set(1)
		return
	}
	sessionReady.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

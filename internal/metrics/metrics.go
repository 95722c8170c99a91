package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of service start attempts.",
		}, []string{"service"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of service stop attempts.",
		}, []string{"service"},
	)
	serviceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "service",
			Name:      "failures_total",
			Help:      "Start or stop attempts that reported a problem.",
		}, []string{"service"},
	)
	watchdogCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "watchdog",
			Name:      "cycles_total",
			Help:      "Watchdog wake-ups, including skipped cycles.",
		},
	)
	watchdogRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "watchdog",
			Name:      "restarts_total",
			Help:      "Daemon restarts attempted by the watchdog.",
		}, []string{"result"},
	)
	notifierSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "notifier",
			Name:      "messages_total",
			Help:      "Slack messages sent, by kind.",
		}, []string{"kind"},
	)
	notifierLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devservices",
			Subsystem: "notifier",
			Name:      "rate_limited_total",
			Help:      "Messages dropped by the sliding-window rate limit.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceStarts, serviceStops, serviceFailures,
		watchdogCycles, watchdogRestarts,
		notifierSent, notifierLimited,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the DefaultGatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart(service string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(service).Inc()
	}
}
func IncStop(service string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(service).Inc()
	}
}
func IncFailure(service string) {
	if regOK.Load() {
		serviceFailures.WithLabelValues(service).Inc()
	}
}
func IncWatchdogCycle() {
	if regOK.Load() {
		watchdogCycles.Inc()
	}
}
func IncWatchdogRestart(result string) {
	if regOK.Load() {
		watchdogRestarts.WithLabelValues(result).Inc()
	}
}
func IncNotifierSent(kind string) {
	if regOK.Load() {
		notifierSent.WithLabelValues(kind).Inc()
	}
}
func IncNotifierRateLimited() {
	if regOK.Load() {
		notifierLimited.Inc()
	}
}

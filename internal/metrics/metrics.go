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

	serverStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful server spawns.",
		},
	)
	serverStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of clean stops (graceful exit observed).",
		},
	)
	serverKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "kills_total",
			Help:      "Number of forced terminations, including escalations.",
		},
	)
	serverCrashes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "crashes_total",
			Help:      "Number of unsolicited exits while running.",
		},
	)
	stopEscalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "stop_escalations_total",
			Help:      "Number of graceful stops escalated to a forced kill.",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between lifecycle states.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "current_state",
			Help:      "Current lifecycle state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	outputLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamewarden",
			Subsystem: "server",
			Name:      "output_lines_total",
			Help:      "Number of output lines captured from the server process.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, serverStops, serverKills, serverCrashes, stopEscalations, stateTransitions, currentState, outputLines}
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart() {
	if regOK.Load() {
		serverStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		serverStops.Inc()
	}
}

func IncKill() {
	if regOK.Load() {
		serverKills.Inc()
	}
}

func IncCrash() {
	if regOK.Load() {
		serverCrashes.Inc()
	}
}

func IncEscalation() {
	if regOK.Load() {
		stopEscalations.Inc()
	}
}

func IncOutputLines(n int) {
	if regOK.Load() {
		outputLines.Add(float64(n))
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}

func SetCurrentState(state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		currentState.WithLabelValues(state).Set(v)
	}
}

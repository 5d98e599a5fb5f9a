// Package metrics provides Prometheus metrics for the player.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensor_player"

var (
	currentState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_state",
		Help:      "Id of the current state",
	})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Committed state transitions",
	}, []string{"from", "to"})

	buttonEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "button_events_total",
		Help:      "Recognised button gestures",
	}, []string{"kind"})

	mediaStarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_starts_total",
		Help:      "Media playbacks started",
	})

	tickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_errors_total",
		Help:      "Ticks that hit a GPIO, LED or media error",
	})
)

// SetState records the current state id.
func SetState(id int) {
	currentState.Set(float64(id))
}

// ObserveTransition counts a committed transition.
func ObserveTransition(from, to int) {
	transitions.WithLabelValues(strconv.Itoa(from), strconv.Itoa(to)).Inc()
	currentState.Set(float64(to))
}

// ObserveButton counts a button gesture such as SKIP or RESET.
func ObserveButton(kind string) {
	buttonEvents.WithLabelValues(kind).Inc()
}

// ObserveMediaStart counts a started playback.
func ObserveMediaStart() {
	mediaStarts.Inc()
}

// ObserveTickError counts a tick that returned an error.
func ObserveTickError() {
	tickErrors.Inc()
}

// Handler returns the Prometheus HTTP handler for all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutsAddedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "tracker",
		Name:      "workouts_added_total",
		Help:      "Number of workouts recorded, by type.",
	}, []string{"type"})

	validationFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "tracker",
		Name:      "validation_failures_total",
		Help:      "Number of rejected workout submissions, by type.",
	}, []string{"type"})

	geolocationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "tracker",
		Name:      "map_starts_total",
		Help:      "Number of map initialisations, by source of the center.",
	}, []string{"source"})

	storageLoadFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "storage",
		Name:      "load_failures_total",
		Help:      "Number of persisted slots that could not be read or parsed.",
	})

	trackersEvictedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "tracker",
		Name:      "evicted_total",
		Help:      "Number of idle per-device trackers dropped from memory.",
	})

	httpRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests, by route and status.",
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		workoutsAddedCounter,
		validationFailureCounter,
		geolocationCounter,
		storageLoadFailureCounter,
		trackersEvictedCounter,
		httpRequestCounter,
	)
}

func RecordWorkoutAdded(kind string) {
	workoutsAddedCounter.WithLabelValues(kind).Inc()
}

func RecordValidationFailure(kind string) {
	validationFailureCounter.WithLabelValues(kind).Inc()
}

// RecordMapStart counts map initialisations; source is "geolocation" or "fallback".
func RecordMapStart(source string) {
	geolocationCounter.WithLabelValues(source).Inc()
}

func RecordStorageLoadFailure() {
	storageLoadFailureCounter.Inc()
}

func RecordTrackersEvicted(n int) {
	trackersEvictedCounter.Add(float64(n))
}

func RecordRequest(method, route string, status int) {
	httpRequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

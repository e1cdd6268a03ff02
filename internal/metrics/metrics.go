package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_tutor_completion_requests_total",
			Help: "Completion requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "music_tutor_completion_latency_seconds",
			Help: "Completion request latency in seconds",
		},
		[]string{"kind"},
	)

	AvatarStreams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_tutor_avatar_streams_total",
			Help: "Avatar stream connection attempts by outcome",
		},
		[]string{"outcome"},
	)

	AvatarFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_tutor_avatar_frames_total",
			Help: "Video frames received from the avatar service",
		},
	)

	AnalysisTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "music_tutor_analysis_ticks_total",
			Help: "Analysis loop ticks by result",
		},
		[]string{"result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "music_tutor_active_sessions",
			Help: "Number of open lesson sessions",
		},
	)

	StoreConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "music_tutor_store_conflicts_total",
			Help: "Version conflicts seen by read-modify-write updates",
		},
	)
)

// ObserveCompletion records one completion call started at start.
func ObserveCompletion(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CompletionRequests.WithLabelValues(kind, outcome).Inc()
	CompletionLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

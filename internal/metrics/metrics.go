package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AccessResolutions counts resolved references by the mode actually used.
	AccessResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_access_resolutions_total",
		Help: "Total number of resolved object references by mode and result",
	}, []string{"mode", "result"})

	// AccessFallbacks counts silent downgrades from one mode to another.
	AccessFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_access_fallbacks_total",
		Help: "Total number of access mode fallbacks",
	}, []string{"from", "to"})

	StreamTokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_stream_token_requests_total",
		Help: "Total number of stream token mint attempts by result",
	}, []string{"result"})

	ManifestRewriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playgate_manifest_rewrite_duration_seconds",
		Help:    "Time taken to rewrite one manifest",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"mode"})

	PlaybackSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playgate_playback_sessions_total",
		Help: "Total number of playback session requests by asset kind and result",
	}, []string{"kind", "result"})
)

func ObserveResolution(mode string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	AccessResolutions.WithLabelValues(mode, result).Inc()
}

func ObserveFallback(from, to string) {
	AccessFallbacks.WithLabelValues(from, to).Inc()
}

func ObserveStreamToken(result string) {
	StreamTokenRequests.WithLabelValues(result).Inc()
}

func ObserveManifestRewrite(mode string, duration time.Duration) {
	ManifestRewriteDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func ObservePlaybackSession(kind, result string) {
	PlaybackSessions.WithLabelValues(kind, result).Inc()
}

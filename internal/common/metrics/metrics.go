// internal/common/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_draft_saves_total",
			Help: "Draft save attempts by outcome (saved, failed, skipped)",
		},
		[]string{"outcome"},
	)

	DraftSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admission_draft_save_duration_seconds",
			Help:    "Duration of draft writes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	SectionAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_section_advances_total",
			Help: "Advance attempts per section and outcome (advanced, blocked)",
		},
		[]string{"section", "outcome"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_submissions_total",
			Help: "Submission attempts by result",
		},
		[]string{"result"},
	)

	SubmissionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admission_submissions_active",
			Help: "Number of submissions in flight",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_notifications_total",
			Help: "Receipt notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics holds the business counters and histograms of the
// service. HTTP RED metrics live in the transport middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/baechuer/biometric-auth/internal/domain"
)

var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Authentication attempts by method, outcome and reason",
		},
		[]string{"method", "outcome", "reason"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refresh_total",
			Help: "Refresh token exchanges",
		},
		[]string{"result"}, // ok, token_expired, token_invalid, token_reused
	)

	AuditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_audit_failures_total",
			Help: "Audit sink failures",
		},
		[]string{"sink"},
	)

	SimilarityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biometric_similarity_score",
			Help:    "Similarity scores produced by verification",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"modality", "matched"},
	)

	ExtractionSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biometric_extraction_seconds",
			Help:    "Feature extraction latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"modality", "result"},
	)
)

// Engine feeds extraction and scoring measurements into the histograms.
type Engine struct{}

func (Engine) ObserveExtraction(m domain.Modality, d time.Duration, err error) {
	ExtractionSeconds.WithLabelValues(string(m), domain.CodeOf(err)).Observe(d.Seconds())
}

func (Engine) ObserveScore(m domain.Modality, score float64, matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	SimilarityScore.WithLabelValues(string(m), label).Observe(score)
}

func ObserveAttempt(a domain.AuthAttempt) {
	LoginAttemptsTotal.WithLabelValues(string(a.Method), string(a.Outcome), a.Reason).Inc()
}

func ObserveRefresh(err error) {
	TokenRefreshTotal.WithLabelValues(domain.CodeOf(err)).Inc()
}

func AuditFailure(sink string) {
	AuditFailuresTotal.WithLabelValues(sink).Inc()
}

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiokeep_uploads_total",
		Help: "Upload attempts by result (ok, rejected, error).",
	}, []string{"result"})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiokeep_upload_duration_seconds",
		Help:    "Wall time of successful uploads.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiokeep_reconcile_runs_total",
		Help: "Completed reconciliation sweeps.",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiokeep_reconcile_issues_total",
		Help: "Inconsistencies found by reconciliation, by type.",
	}, []string{"type"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentsweep_scan_strategy_total",
			Help: "Total number of discovery strategy runs",
		},
		[]string{"strategy", "status"},
	)

	ScanAccountsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentsweep_scan_accounts_found_total",
			Help: "Total number of candidate accounts found per discovery strategy",
		},
		[]string{"strategy"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rentsweep_scan_duration_seconds",
			Help:    "Duration of full owner scans",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		},
	)

	SubmissionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentsweep_submission_total",
			Help: "Total number of reclaim transaction submissions by final state",
		},
		[]string{"state"},
	)

	ConfirmationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rentsweep_confirmation_poll_attempts",
			Help:    "Number of status poll attempts before a submission reached a terminal state",
			Buckets: prometheus.LinearBuckets(1, 5, 13), // 1 to 61
		},
	)
)

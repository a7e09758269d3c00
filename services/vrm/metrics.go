package vrm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrm_commits_total",
		Help: "The total number of commits by result",
	}, []string{"result"})

	commitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrm_commit_retries_total",
		Help: "The total number of commit attempts retried after a host failure",
	})

	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vrm_commit_duration_seconds",
		Help:    "Time taken to write a batch back to the host, retries included",
		Buckets: prometheus.DefBuckets,
	})

	parseWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrm_parse_warnings_total",
		Help: "The total number of warnings collected while parsing documents",
	}, []string{"kind"})
)

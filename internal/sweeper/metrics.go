package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK     = "ok"
	resultFailed = "failed"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchfork_sweeper_ticks_total",
			Help: "Total number of expiry sweeps, by result",
		},
		[]string{"result"},
	)

	recordsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchfork_sweeper_records_deleted_total",
			Help: "Total number of expired records deleted, by store",
		},
		[]string{"store"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pitchfork_sweeper_tick_duration_seconds",
			Help:    "Duration of a single expiry sweep across all stores",
			Buckets: prometheus.DefBuckets,
		},
	)
)

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	AllocationChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_checks_total",
			Help: "Total number of conflict checks by outcome",
		},
		[]string{"outcome"},
	)
	ConflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_conflicts_total",
			Help: "Total number of conflicts detected by type and severity",
		},
		[]string{"type", "severity"},
	)
	Allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocations_total",
			Help: "Total number of allocation attempts by result",
		},
		[]string{"result"},
	)
	Reallocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reallocations_total",
			Help: "Total number of reallocation attempts by result",
		},
		[]string{"result"},
	)
	ReallocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reallocation_duration_seconds",
			Help:    "Duration of reallocation transactions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)
)

func InitMetrics() {
	collectors := []prometheus.Collector{
		AllocationChecks,
		ConflictsDetected,
		Allocations,
		Reallocations,
		ReallocationDuration,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("Failed to register metric")
		}
	}
}

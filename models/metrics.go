package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world"
)

var (
	worldEntityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_entity_count",
		Help: "The number of entities in a world.",
	}, []string{worldLabel})

	worldTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_ticks",
		Help: "The number of simulated ticks.",
	}, []string{worldLabel})

	worldTickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "world_tick_latency",
		Help:    "The time taken to simulate a tick, in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{worldLabel})

	worldCandidatePairs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_candidate_pairs",
		Help: "The number of neighbour candidate pairs found during the last tick.",
	}, []string{worldLabel})
)

func instrumentEntityCount(world string, n int) {
	worldEntityCount.
		With(prometheus.Labels{worldLabel: world}).
		Set(float64(n))
}

func instrumentTick(world string, latency time.Duration, pairs int) {
	labels := prometheus.Labels{worldLabel: world}

	worldTicks.With(labels).Inc()
	worldTickLatency.With(labels).Observe(latency.Seconds())
	worldCandidatePairs.With(labels).Set(float64(pairs))
}

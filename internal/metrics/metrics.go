// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookshelf",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route pattern and method.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookshelf",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// RatingRecomputes counts book rating recomputations.
	RatingRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookshelf",
		Name:      "rating_recomputes_total",
		Help:      "Book rating recomputations.",
	})

	// DBPoolConns reports pool connections by state: acquired, idle,
	// constructing and total.
	DBPoolConns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bookshelf",
		Subsystem: "db_pool",
		Name:      "conns",
		Help:      "Database pool connections by state.",
	}, []string{"state"})

	DBPoolMaxConns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bookshelf",
		Subsystem: "db_pool",
		Name:      "max_conns",
		Help:      "Configured maximum pool size.",
	})

	// DBPoolAcquires mirrors the pool's cumulative acquire counters.
	DBPoolAcquires = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bookshelf",
		Subsystem: "db_pool",
		Name:      "acquires",
		Help:      "Cumulative pool acquires by outcome.",
	}, []string{"outcome"})
)

// ObservePool copies a pool snapshot into the db_pool gauges. A nil stat is
// ignored.
func ObservePool(stat *pgxpool.Stat) {
	if stat == nil {
		return
	}
	DBPoolConns.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBPoolConns.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConns.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConns.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBPoolMaxConns.Set(float64(stat.MaxConns()))
	DBPoolAcquires.WithLabelValues("ok").Set(float64(stat.AcquireCount()))
	DBPoolAcquires.WithLabelValues("empty").Set(float64(stat.EmptyAcquireCount()))
	DBPoolAcquires.WithLabelValues("canceled").Set(float64(stat.CanceledAcquireCount()))
}

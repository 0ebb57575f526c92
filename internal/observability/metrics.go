// Package observability provides metrics and tracing.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sprout_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesTotal counts vote transitions by direction.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_votes_total",
		Help: "Total number of votes cast by direction",
	}, []string{"direction"})

	// ToggleTotal counts follow and favourite toggles by kind and result.
	ToggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_toggles_total",
		Help: "Total number of social toggles by kind and resulting state",
	}, []string{"kind", "result"})

	// PartialUpdatesTotal counts multi-step writes left half applied.
	PartialUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_partial_updates_total",
		Help: "Total number of multi-step writes that could not be completed or rolled back",
	}, []string{"operation"})

	// PaymentEventsTotal counts processed payment webhook events by type.
	PaymentEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_payment_events_total",
		Help: "Total number of payment webhook events by type",
	}, []string{"type"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_cache_lookups_total",
		Help: "Total number of cache lookups by result",
	}, []string{"result"})

	// WebSocketBackpressureDrops counts outbound websocket messages dropped
	// by hub and reason (full, closed).
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sprout_websocket_backpressure_drops_total",
		Help: "Total number of websocket messages dropped before delivery",
	}, []string{"hub", "reason"})
)

const queryStartKey = "sprout:query_start"

// InstrumentGorm registers callbacks that feed DatabaseQueryLatency.
func InstrumentGorm(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("sprout:before_create", before),
		cb.Create().After("gorm:create").Register("sprout:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("sprout:before_query", before),
		cb.Query().After("gorm:query").Register("sprout:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("sprout:before_update", before),
		cb.Update().After("gorm:update").Register("sprout:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("sprout:before_delete", before),
		cb.Delete().After("gorm:delete").Register("sprout:after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("sprout:before_row", before),
		cb.Row().After("gorm:row").Register("sprout:after_row", after("row")),
		cb.Raw().Before("gorm:raw").Register("sprout:before_raw", before),
		cb.Raw().After("gorm:raw").Register("sprout:after_raw", after("raw")),
	)
}

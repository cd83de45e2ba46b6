package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the catalog.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Entity lifecycle
	EntitiesCreatedTotal *prometheus.CounterVec
	EntitiesDeletedTotal *prometheus.CounterVec

	// Quarking
	QuarkRequestsTotal *prometheus.CounterVec

	// Ingestion
	UnitOfWorkRollbacksTotal prometheus.Counter
	IngestDuration           prometheus.Histogram

	// Volume accounting
	LocationVolumeBytes *prometheus.GaugeVec
}

// NewMetrics creates the catalog metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntitiesCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfstore",
			Subsystem: "catalog",
			Name:      "entities_created_total",
			Help:      "Total number of catalog entities created",
		}, []string{"entity"}),
		EntitiesDeletedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfstore",
			Subsystem: "catalog",
			Name:      "entities_deleted_total",
			Help:      "Total number of catalog entities deleted, including cascades",
		}, []string{"entity"}),
		QuarkRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfstore",
			Subsystem: "quark",
			Name:      "requests_total",
			Help:      "Total number of quark requests by outcome",
		}, []string{"outcome"}),
		UnitOfWorkRollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cfstore",
			Subsystem: "ingest",
			Name:      "unit_of_work_rollbacks_total",
			Help:      "Total number of file ingestions rolled back",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cfstore",
			Subsystem: "ingest",
			Name:      "file_duration_seconds",
			Help:      "Histogram of per-file ingestion durations",
			Buckets:   prometheus.DefBuckets,
		}),
		LocationVolumeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cfstore",
			Subsystem: "location",
			Name:      "volume_bytes",
			Help:      "Recorded volume of each location as of the last verification",
		}, []string{"location"}),
	}
}

// Quark request outcomes.
const (
	OutcomeCreated    = "created"
	OutcomeReused     = "reused"
	OutcomeFull       = "full_coverage"
	OutcomeOutOfRange = "out_of_range"
	OutcomeError      = "error"
)

// Created counts one created entity.
func (m *Metrics) Created(entity string) {
	if m == nil {
		return
	}
	m.EntitiesCreatedTotal.WithLabelValues(entity).Inc()
}

// Deleted counts one deleted entity.
func (m *Metrics) Deleted(entity string) {
	if m == nil {
		return
	}
	m.EntitiesDeletedTotal.WithLabelValues(entity).Inc()
}

// Quark counts one quark request.
func (m *Metrics) Quark(outcome string) {
	if m == nil {
		return
	}
	m.QuarkRequestsTotal.WithLabelValues(outcome).Inc()
}

// Rollback counts one rolled-back ingestion.
func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.UnitOfWorkRollbacksTotal.Inc()
}

// ObserveIngest records the duration of one file ingestion.
func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(d.Seconds())
}

// SetLocationVolume publishes a location's recorded volume.
func (m *Metrics) SetLocationVolume(location string, volume int64) {
	if m == nil {
		return
	}
	m.LocationVolumeBytes.WithLabelValues(location).Set(float64(volume))
}

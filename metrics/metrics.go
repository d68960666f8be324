package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DiskMetrics exposes Prometheus metrics for one or more disks.
// All record methods are safe on a nil receiver, so callers that do not
// configure metrics pay nothing.
type DiskMetrics struct {
	reservedBytes    *prometheus.GaugeVec
	reservationCount *prometheus.GaugeVec
	deleteBatches    *prometheus.CounterVec
	deleteFailures   *prometheus.CounterVec
}

// NewDiskMetrics registers the disk metric vectors with the given registerer.
func NewDiskMetrics(reg prometheus.Registerer) *DiskMetrics {
	return &DiskMetrics{
		reservedBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "remotedisk_reserved_bytes",
				Help: "Bytes currently reserved on the disk across all live reservations",
			},
			[]string{"disk"},
		),
		reservationCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "remotedisk_reservation_count",
				Help: "Number of live reservations on the disk",
			},
			[]string{"disk"},
		),
		deleteBatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remotedisk_remote_delete_batches_total",
				Help: "Total number of batched remote delete invocations by disk",
			},
			[]string{"disk"},
		),
		deleteFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remotedisk_remote_delete_failures_total",
				Help: "Total number of failed batched remote delete invocations by disk",
			},
			[]string{"disk"},
		),
	}
}

// AddReservedBytes adjusts the reserved byte gauge by delta, which may be
// negative on release or shrink.
func (m *DiskMetrics) AddReservedBytes(disk string, delta int64) {
	if m == nil {
		return
	}
	m.reservedBytes.WithLabelValues(disk).Add(float64(delta))
}

// AddReservations adjusts the live reservation gauge by delta.
func (m *DiskMetrics) AddReservations(disk string, delta int64) {
	if m == nil {
		return
	}
	m.reservationCount.WithLabelValues(disk).Add(float64(delta))
}

// RecordDeleteBatch records one batched remote delete invocation.
func (m *DiskMetrics) RecordDeleteBatch(disk string) {
	if m == nil {
		return
	}
	m.deleteBatches.WithLabelValues(disk).Inc()
}

// RecordDeleteFailure records one failed batched remote delete invocation.
func (m *DiskMetrics) RecordDeleteFailure(disk string) {
	if m == nil {
		return
	}
	m.deleteFailures.WithLabelValues(disk).Inc()
}

package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Metrics implements screenpaw.Metrics using Prometheus.
type Metrics struct {
	pollsTotal         *prometheus.CounterVec
	pollDuration       prometheus.Histogram
	snapshotsAccepted  *prometheus.CounterVec
	degradedTotal      prometheus.Counter
	penaltiesTotal     prometheus.Counter
	penaltyAmount      prometheus.Histogram
	creditSpendTotal   *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
	storageOpsErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_polls_total",
			Help:      "Total number of shared-store polls.",
		}, []string{"success"}),

		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usage_poll_duration_seconds",
			Help:      "Latency of shared-store reads.",
			Buckets:   prometheus.DefBuckets,
		}),

		snapshotsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_snapshots_accepted_total",
			Help:      "Total number of accepted (changed) usage snapshots.",
		}, []string{"source"}),

		degradedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_degraded_polls_total",
			Help:      "Total number of polls that fell back to local estimates.",
		}),

		penaltiesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_penalties_total",
			Help:      "Total number of over-limit penalties charged.",
		}),

		penaltyAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "credit_penalty_amount",
			Help:      "Distribution of penalty sizes in credits.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7},
		}),

		creditSpendTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_spend_total",
			Help:      "Total number of fee charges.",
		}, []string{"reason", "waived"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordPoll(duration time.Duration, err error) {
	m.pollsTotal.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.pollDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordSnapshotAccepted(source screenpaw.Source) {
	m.snapshotsAccepted.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) RecordDegraded() {
	m.degradedTotal.Inc()
}

func (m *Metrics) RecordPenalty(amount int) {
	m.penaltiesTotal.Inc()
	m.penaltyAmount.Observe(float64(amount))
}

func (m *Metrics) RecordCreditSpend(reason screenpaw.Reason, amount int, waived bool) {
	m.creditSpendTotal.WithLabelValues(string(reason), strconv.FormatBool(waived)).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

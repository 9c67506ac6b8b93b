package tmq

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet mirrors the quantified invariants of an endpoint (storage
// bytes in use, available message count, blocked readers) as Prometheus
// gauges, plus counters for the two cancellation paths. It is optional: a
// Table built without WithMetrics carries a nil *metricsSet on every
// endpoint, and every metric* method below is a no-op in that case.
type metricsSet struct {
	storageBytes   *prometheus.GaugeVec
	availableCount *prometheus.GaugeVec
	blockedReaders *prometheus.GaugeVec
	openSessions   *prometheus.GaugeVec
	revokedBytes   *prometheus.CounterVec
	flushedReaders *prometheus.CounterVec
}

func newMetricsSet(reg prometheus.Registerer, namespace string) *metricsSet {
	labels := []string{"endpoint"}
	m := &metricsSet{
		storageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_storage_bytes",
			Help:      "Bytes currently charged against an endpoint's storage budget.",
		}, labels),
		availableCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_available_messages",
			Help:      "Messages currently available to be read on an endpoint.",
		}, labels),
		blockedReaders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_blocked_readers",
			Help:      "Readers currently blocked waiting for a message on an endpoint.",
		}, labels),
		openSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_open_sessions",
			Help:      "Sessions currently open on an endpoint.",
		}, labels),
		revokedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_revoked_bytes_total",
			Help:      "Bytes released by cancelling pending posts via revoke or flush.",
		}, labels),
		flushedReaders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_flushed_readers_total",
			Help:      "Blocked readers unblocked by a flush.",
		}, labels),
	}
	if reg != nil {
		reg.MustRegister(
			m.storageBytes, m.availableCount, m.blockedReaders,
			m.openSessions, m.revokedBytes, m.flushedReaders,
		)
	}
	return m
}

func (ep *Endpoint) metricLabel() string { return strconv.Itoa(ep.id) }

func (ep *Endpoint) metricStorage(v int) {
	if ep.metrics == nil {
		return
	}
	ep.metrics.storageBytes.WithLabelValues(ep.metricLabel()).Set(float64(v))
}

func (ep *Endpoint) metricAvailable(v int) {
	if ep.metrics == nil {
		return
	}
	ep.metrics.availableCount.WithLabelValues(ep.metricLabel()).Set(float64(v))
}

func (ep *Endpoint) metricBlocked(v int) {
	if ep.metrics == nil {
		return
	}
	ep.metrics.blockedReaders.WithLabelValues(ep.metricLabel()).Set(float64(v))
}

func (ep *Endpoint) metricSessions(v int) {
	if ep.metrics == nil {
		return
	}
	ep.metrics.openSessions.WithLabelValues(ep.metricLabel()).Set(float64(v))
}

func (ep *Endpoint) metricRevoked(bytesReleased int) {
	if ep.metrics == nil || bytesReleased == 0 {
		return
	}
	ep.metrics.revokedBytes.WithLabelValues(ep.metricLabel()).Add(float64(bytesReleased))
}

func (ep *Endpoint) metricFlushedReaders(n int) {
	if ep.metrics == nil || n == 0 {
		return
	}
	ep.metrics.flushedReaders.WithLabelValues(ep.metricLabel()).Add(float64(n))
}

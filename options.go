package tmq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Option configures a Table at construction time.
type Option func(*tableOptions)

type tableOptions struct {
	metricsEnabled bool
	registerer     prometheus.Registerer
	namespace      string
}

// WithMetrics enables a Prometheus metrics set mirroring every endpoint's
// storage/available/blocked-reader counters, registering it against reg.
// If reg is nil, metrics are still collected in-process but not exposed to
// any registry (useful for tests asserting on counter values without a
// global registry side effect).
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *tableOptions) {
		o.metricsEnabled = true
		o.registerer = reg
	}
}

// WithMetricsNamespace sets the Prometheus namespace prefix used by
// WithMetrics. Defaults to "tmq".
func WithMetricsNamespace(ns string) Option {
	return func(o *tableOptions) { o.namespace = ns }
}

// WithLogger replaces the package-wide structured logger used by every
// Table for the remainder of the process. It is equivalent to calling
// SetLogger directly; it exists as an Option for callers that prefer to
// configure everything at NewTable call sites.
func WithLogger(l zerolog.Logger) Option {
	return func(*tableOptions) { SetLogger(l) }
}

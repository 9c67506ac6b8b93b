package tmq

import "sync"

// Table is the fixed-size array of endpoints that every operation is
// dispatched through. It is process-wide state with an init-once (NewTable)
// / teardown-once (Close) lifecycle: no operation may be invoked on a Table
// before NewTable returns or after Close has been called.
type Table struct {
	cfg       Config
	endpoints []*Endpoint

	mu     sync.Mutex
	closed bool
}

// NewTable builds a Table of cfg.EndpointCount endpoints governed by cfg.
// It returns an error if cfg fails validation (see Config.validate).
func NewTable(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var o tableOptions
	o.namespace = "tmq"
	for _, opt := range opts {
		opt(&o)
	}

	var metrics *metricsSet
	if o.metricsEnabled {
		metrics = newMetricsSet(o.registerer, o.namespace)
	}

	t := &Table{
		cfg:       cfg,
		endpoints: make([]*Endpoint, cfg.EndpointCount),
	}
	for i := range t.endpoints {
		t.endpoints[i] = newEndpoint(i, &t.cfg, metrics)
	}

	logger.Info().Int("endpoints", cfg.EndpointCount).
		Int("max_message_size", cfg.MaxMessageSize).
		Int("max_storage_size", cfg.MaxStorageSize).
		Msg("tmq table installed")

	return t, nil
}

// Open creates a new session on the endpoint identified by id, returning
// ErrBadEndpoint if id is outside [0, EndpointCount).
func (t *Table) Open(id int) (*Session, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if id < 0 || id >= len(t.endpoints) {
		return nil, ErrBadEndpoint
	}

	ep := t.endpoints[id]
	s := newSession(ep, t.cfg)
	ep.addSession(s)

	logger.Debug().Int("endpoint", id).Msg("open")
	return s, nil
}

// EndpointCount returns the number of endpoints in the table.
func (t *Table) EndpointCount() int { return len(t.endpoints) }

// Close marks the table as torn down. It does not forcibly close sessions
// still open on it — callers are expected to have closed every session
// they opened, exactly as the table this models never escalates a
// session's failure to the endpoint or the table.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	logger.Info().Msg("tmq table uninstalled")
	return nil
}

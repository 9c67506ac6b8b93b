package tmq

import "errors"

// Sentinel errors returned by the operation surface. Callers should match
// against these with errors.Is rather than comparing return codes, which is
// the closest idiomatic Go analogue of the single negative-sentinel
// convention the driver this package is modelled on uses at its boundary.
var (
	// ErrBadEndpoint is returned by Open when the endpoint id is outside
	// [0, N).
	ErrBadEndpoint = errors.New("tmq: bad endpoint id")

	// ErrTooLarge is returned by Write when the payload exceeds
	// Config.MaxMessageSize.
	ErrTooLarge = errors.New("tmq: message too large")

	// ErrNoSpace is returned by Write when posting the message would push
	// the endpoint's storage charge over Config.MaxStorageSize.
	ErrNoSpace = errors.New("tmq: endpoint storage exhausted")

	// ErrEmpty is returned by Read when there is nothing to read and
	// either the session's receive wait is zero or it elapsed without a
	// message arriving.
	ErrEmpty = errors.New("tmq: no message available")

	// ErrFlushed is returned by a blocked Read that was unblocked by a
	// Flush on its endpoint rather than by a message arriving or by
	// timing out.
	ErrFlushed = errors.New("tmq: read cancelled by flush")

	// ErrShortRead is returned alongside the number of bytes copied
	// when the caller's buffer was smaller than the message: the message
	// is always consumed whole regardless, but the caller may want to
	// know bytes were dropped.
	ErrShortRead = errors.New("tmq: buffer too small, message truncated")

	// ErrInternal marks failures of the underlying scheduling or
	// allocation primitives. The in-process implementation in this
	// package cannot produce it, but it is part of the public error
	// surface so callers written against a future host integration can
	// already match on it.
	ErrInternal = errors.New("tmq: internal error")

	// ErrClosed is returned by Table.Open after the Table's Close, and by
	// Write, Read, Control and Flush on a Session after its own Close.
	// Closing an already closed Table or Session returns nil.
	ErrClosed = errors.New("tmq: use after close")
)

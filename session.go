package tmq

import (
	"container/list"
	"sync"
	"time"
)

// Command identifies a Session.Control operation.
type Command int

const (
	// CmdSetSendDelay sets the session's send delay. The argument must be
	// a time.Duration >= 0.
	CmdSetSendDelay Command = iota
	// CmdSetRecvWait sets the session's receive wait. The argument must
	// be a time.Duration >= 0.
	CmdSetRecvWait
	// CmdRevokePending cancels every still-pending deferred post on this
	// session. The argument is ignored.
	CmdRevokePending
)

// Session is a client's open handle against one endpoint. It is obtained
// from Table.Open and is the only type external callers otherwise interact
// with: Write, Read, Control, Flush, and Close are all methods on *Session.
type Session struct {
	endpoint *Endpoint

	mu           sync.Mutex
	sendDelay    time.Duration
	recvWait     time.Duration
	pendingPosts *list.List
	inflight     sync.WaitGroup
	closed       bool
}

func newSession(ep *Endpoint, cfg Config) *Session {
	return &Session{
		endpoint:     ep,
		sendDelay:    cfg.DefaultSendDelay,
		recvWait:     cfg.DefaultRecvWait,
		pendingPosts: list.New(),
	}
}

// Write posts data onto the session's endpoint. If the session's send delay
// is zero the message is published immediately and n equals len(data). If
// the send delay is nonzero, the post is merely accepted (n == 0) and
// becomes visible to readers only after the delay elapses, unless revoked
// first by Control(CmdRevokePending) or by a Flush on the endpoint.
func (s *Session) Write(data []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.mu.Unlock()

	ep := s.endpoint
	if len(data) > ep.cfg.MaxMessageSize {
		ep.logWrite(s, len(data), ErrTooLarge)
		return 0, ErrTooLarge
	}

	if err := ep.reserve(len(data)); err != nil {
		ep.logWrite(s, len(data), err)
		return 0, err
	}

	msg := newMessage(data)

	s.mu.Lock()
	delay := s.sendDelay
	s.mu.Unlock()

	if delay == 0 {
		ep.publish(msg, nil)
		ep.logWrite(s, msg.size, nil)
		return msg.size, nil
	}

	post := &PendingPost{payload: msg, session: s, targetEndpointID: ep.id}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ep.release(msg.size)
		return 0, ErrClosed
	}
	s.inflight.Add(1)
	post.elem = s.pendingPosts.PushBack(post)
	post.timer = time.AfterFunc(delay, func() { ep.fireDeferred(s, post) })
	s.mu.Unlock()

	ep.logDeferredWrite(s, msg.size, delay)
	return 0, nil
}

// Read consumes the oldest available message on the session's endpoint,
// copying up to len(buf) bytes into it. If no message is available and the
// session's receive wait is zero, it fails immediately with ErrEmpty. If
// the receive wait is nonzero, it blocks until a message arrives, the wait
// elapses (ErrEmpty), or a Flush on the endpoint cancels it (ErrFlushed).
//
// The message is always consumed in full even if buf is too small to hold
// it; in that case Read returns the truncated byte count alongside
// ErrShortRead.
func (s *Session) Read(buf []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	wait := s.recvWait
	s.mu.Unlock()

	n, err := s.endpoint.read(buf, wait)
	s.endpoint.logRead(s, n, err)
	return n, err
}

// Control applies a session-scoped command. Unknown commands are silent
// no-ops, matching the distilled driver's ioctl default case.
func (s *Session) Control(cmd Command, arg any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	switch cmd {
	case CmdSetSendDelay:
		d, _ := arg.(time.Duration)
		s.sendDelay = d
		s.mu.Unlock()
	case CmdSetRecvWait:
		d, _ := arg.(time.Duration)
		s.recvWait = d
		s.mu.Unlock()
	case CmdRevokePending:
		released := s.revokeLocked()
		s.mu.Unlock()
		s.endpoint.release(released)
		s.endpoint.metricRevoked(released)
		s.endpoint.logRevoke(s, released)
		return nil
	default:
		s.mu.Unlock()
	}
	return nil
}

// revokeLocked walks the session's pending-post list, cancelling every post
// whose timer has not yet fired. Must be called with s.mu held; it releases
// nothing on the endpoint itself, the caller is responsible for that.
func (s *Session) revokeLocked() int {
	released := 0
	var next *list.Element
	for e := s.pendingPosts.Front(); e != nil; e = next {
		next = e.Next()
		post := e.Value.(*PendingPost)
		if size, ok := post.attemptCancel(); ok {
			released += size
		}
	}
	return released
}

// Flush cancels every still-pending deferred post across every session open
// on this session's endpoint, and unblocks every reader currently blocked
// on it. It is endpoint-scoped: its effect is not limited to the calling
// session.
func (s *Session) Flush() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.endpoint.flush()
	s.endpoint.logFlush(s)
	return nil
}

// Close unlinks the session from its endpoint and waits for every deferred
// post it scheduled to either have been cancelled or to have finished
// firing, so that no timer task outlives the session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.endpoint.unlinkSession(s)

	s.mu.Lock()
	released := s.revokeLocked()
	s.mu.Unlock()
	s.endpoint.release(released)

	s.inflight.Wait()
	s.endpoint.logClose(s)
	return nil
}

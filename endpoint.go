package tmq

import (
	"container/list"
	"sync"
	"time"
)

// Endpoint is one logical queue: a visible message list in publication
// order, storage accounting shared by published messages and pending
// posts, the set of sessions currently open on it, and the readers
// currently blocked waiting for a message. All of its fields are protected
// by mu; cond is bound to mu and is how blocked readers wait and are woken.
type Endpoint struct {
	id  int
	cfg *Config

	mu             sync.Mutex
	cond           *sync.Cond
	messages       *list.List
	storageBytes   int
	availableCount int
	sessions       map[*Session]struct{}
	blockedReaders *list.List

	metrics *metricsSet
}

func newEndpoint(id int, cfg *Config, m *metricsSet) *Endpoint {
	ep := &Endpoint{
		id:             id,
		cfg:            cfg,
		messages:       list.New(),
		sessions:       make(map[*Session]struct{}),
		blockedReaders: list.New(),
		metrics:        m,
	}
	ep.cond = sync.NewCond(&ep.mu)
	return ep
}

func (ep *Endpoint) addSession(s *Session) {
	ep.mu.Lock()
	ep.sessions[s] = struct{}{}
	ep.metricSessions(len(ep.sessions))
	ep.mu.Unlock()
}

func (ep *Endpoint) unlinkSession(s *Session) {
	ep.mu.Lock()
	delete(ep.sessions, s)
	ep.metricSessions(len(ep.sessions))
	ep.mu.Unlock()
}

// reserve charges n bytes against the endpoint's storage budget, failing
// with ErrNoSpace if that would exceed Config.MaxStorageSize. It must be
// called before the message it covers is created, per the write procedure.
func (ep *Endpoint) reserve(n int) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.storageBytes+n > ep.cfg.MaxStorageSize {
		return ErrNoSpace
	}
	ep.storageBytes += n
	ep.metricStorage(ep.storageBytes)
	return nil
}

// release returns n bytes to the endpoint's storage budget, used when a
// pending post is cancelled or a deferred write is refused because its
// session closed. A read drains its charge in detachHeadLocked instead.
func (ep *Endpoint) release(n int) {
	if n == 0 {
		return
	}
	ep.mu.Lock()
	ep.storageBytes -= n
	ep.metricStorage(ep.storageBytes)
	ep.mu.Unlock()
}

// publish appends msg to the visible message list. post is non-nil when
// this publication is the delayed firing of a deferred write; it is nil for
// an immediate (zero send-delay) write.
func (ep *Endpoint) publish(msg *Message, post *PendingPost) {
	ep.mu.Lock()
	ep.messages.PushBack(&queuedMessage{msg: msg, post: post})
	ep.availableCount++
	ep.metricAvailable(ep.availableCount)
	ep.cond.Signal()
	ep.mu.Unlock()
}

// fireDeferred is the timer callback for a deferred write: it publishes the
// post's payload and marks the session's timer scope as one task lighter,
// which is what lets a concurrent Close's inflight.Wait() eventually
// return. The PendingPost itself is left linked in the session's pending
// list — it remains the payload's physical container until a read drains
// it, at which point the reader unlinks it.
func (ep *Endpoint) fireDeferred(s *Session, post *PendingPost) {
	defer s.inflight.Done()
	ep.publish(post.payload, post)
}

// detachHeadLocked removes and returns the oldest queued message. Callers
// must hold ep.mu and must have already confirmed availableCount > 0.
func (ep *Endpoint) detachHeadLocked() *queuedMessage {
	front := ep.messages.Front()
	qm := front.Value.(*queuedMessage)
	ep.messages.Remove(front)
	ep.availableCount--
	ep.storageBytes -= qm.msg.size
	ep.metricAvailable(ep.availableCount)
	ep.metricStorage(ep.storageBytes)
	return qm
}

// finishRead copies a detached message's bytes into buf, unlinking its
// owning PendingPost (if any) from its session's pending list, and reports
// ErrShortRead if buf could not hold the whole message. Must be called
// without the endpoint lock held.
func (ep *Endpoint) finishRead(qm *queuedMessage, buf []byte) (int, error) {
	n := copy(buf, qm.msg.bytes[:qm.msg.size])

	if qm.post != nil {
		s := qm.post.session
		s.mu.Lock()
		s.pendingPosts.Remove(qm.post.elem)
		s.mu.Unlock()
	}

	if n < qm.msg.size {
		return n, ErrShortRead
	}
	return n, nil
}

// read implements the blocking-read protocol of §4.5: an immediate drain if
// a message is available, an immediate ErrEmpty if not and wait <= 0, or a
// bounded block otherwise, woken by a publish (Signal), a Flush
// (Broadcast + flushed flag), or its own deadline timer (Broadcast).
func (ep *Endpoint) read(buf []byte, wait time.Duration) (int, error) {
	ep.mu.Lock()

	if ep.availableCount > 0 {
		qm := ep.detachHeadLocked()
		ep.mu.Unlock()
		return ep.finishRead(qm, buf)
	}

	if wait <= 0 {
		ep.mu.Unlock()
		return 0, ErrEmpty
	}

	pr := &PendingRead{}
	pr.elem = ep.blockedReaders.PushBack(pr)
	ep.metricBlocked(ep.blockedReaders.Len())

	deadline := time.Now().Add(wait)
	timer := time.AfterFunc(wait, func() {
		ep.mu.Lock()
		ep.cond.Broadcast()
		ep.mu.Unlock()
	})
	defer timer.Stop()

	for {
		switch {
		case ep.availableCount > 0:
			qm := ep.detachHeadLocked()
			ep.blockedReaders.Remove(pr.elem)
			ep.metricBlocked(ep.blockedReaders.Len())
			ep.mu.Unlock()
			return ep.finishRead(qm, buf)

		case pr.flushed:
			ep.blockedReaders.Remove(pr.elem)
			ep.metricBlocked(ep.blockedReaders.Len())
			ep.mu.Unlock()
			return 0, ErrFlushed

		case !time.Now().Before(deadline):
			ep.blockedReaders.Remove(pr.elem)
			ep.metricBlocked(ep.blockedReaders.Len())
			ep.mu.Unlock()
			return 0, ErrEmpty

		default:
			// Releases ep.mu, sleeps, reacquires ep.mu before
			// returning; a spurious wake just re-evaluates the
			// switch above.
			ep.cond.Wait()
		}
	}
}

// flush cancels every still-pending post across every session open on this
// endpoint and unblocks every blocked reader. It is the only operation that
// acquires a session lock while already holding the endpoint lock; every
// other path acquires at most one of the two, which is what keeps the fixed
// lock order (endpoint before session) free of cycles.
func (ep *Endpoint) flush() {
	ep.mu.Lock()

	released := 0
	for s := range ep.sessions {
		s.mu.Lock()
		released += s.revokeLocked()
		s.mu.Unlock()
	}
	ep.storageBytes -= released
	ep.metricStorage(ep.storageBytes)
	ep.metricRevoked(released)

	flushedCount := 0
	for e := ep.blockedReaders.Front(); e != nil; e = e.Next() {
		e.Value.(*PendingRead).flushed = true
		flushedCount++
	}
	ep.metricFlushedReaders(flushedCount)

	ep.cond.Broadcast()
	ep.mu.Unlock()
}

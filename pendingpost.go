package tmq

import (
	"container/list"
	"time"
)

// PendingPost is a message whose visibility is deferred until its timer
// fires. It lives in its owning session's pendingPosts list until either it
// is cancelled by revoke/flush, or its timer fires (publishing the payload,
// after which the post itself is the payload's physical container in the
// endpoint's message list) and a read drains that payload.
//
// session is a non-owning back-reference: PendingPost never controls the
// session's lifetime, it only uses the pointer to find the list it must
// unlink itself from.
type PendingPost struct {
	payload          *Message
	session          *Session
	targetEndpointID int
	timer            *time.Timer

	// elem is this post's node in session.pendingPosts, set once at
	// creation so cancellation is an O(1) list.Remove.
	elem *list.Element
}

// attemptCancel tries to stop the post's timer before it fires. It must be
// called with the owning session's lock held. On success it unlinks the
// post from the session's list and returns its payload size so the caller
// can release the endpoint's storage charge; on failure (the timer already
// fired or is firing) it returns false and leaves the post untouched — the
// timer callback owns its fate from that point on.
func (p *PendingPost) attemptCancel() (size int, ok bool) {
	if !p.timer.Stop() {
		return 0, false
	}
	p.session.pendingPosts.Remove(p.elem)
	p.session.inflight.Done()
	return p.payload.size, true
}

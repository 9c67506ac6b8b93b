package tmq

import "container/list"

// PendingRead represents a reader currently blocked on an endpoint. It is
// linked into the endpoint's blockedReaders list for the duration of the
// block and carries the one-shot flag flush sets to cancel it. Both the
// flag and the list membership are only ever touched under the owning
// endpoint's lock.
type PendingRead struct {
	flushed bool
	elem    *list.Element
}

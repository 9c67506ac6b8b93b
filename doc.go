// Package tmq implements a timed, per-endpoint in-process message queue.
//
// An endpoint is a logical queue identified by a small integer. Clients open
// sessions against an endpoint and post or consume messages through them.
// Two per-session timing knobs make the queue more than a plain channel: a
// send delay holds a posted message invisible to readers for a duration
// (and lets the session revoke it before it becomes visible), and a receive
// wait lets a read block for up to a duration for a message to arrive. A
// flush, callable from any session on an endpoint, cancels every
// still-pending delayed post and unblocks every blocked reader on that
// endpoint.
package tmq

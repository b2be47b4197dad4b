// Package task orchestrates broadcast-manager operations over a
// channel.
//
// The Manager is stateless: tasks live in the remote broadcast manager,
// keyed by (identifier, direction). Every operation validates its
// inputs, encodes through the wire codec and hands the buffers to the
// channel in order. A send failure is fatal for that operation and is
// never retried — after a partial failure the remote state is not
// observable from here, and a silent retry risks duplicating tasks.
//
// Repeating a setup for an identifier that is already active is a legal
// in-place update, not an error. Deleting an identifier that is absent
// is sent as-is; the remote effect is collaborator-defined.
//
// The Loop drives one channel single-threadedly: it drains the external
// operation queue, then issues one non-blocking receive per iteration,
// routing decoded messages through the event dispatcher. Stopping is a
// single atomic flag checked once per iteration.
package task

// Package router implements the name-based message routing core of the
// bridge: a target registry with singleton enforcement, a cached-handler
// fast path keyed by (target, method), and a bounded queue that absorbs
// messages addressed to targets that have not registered yet.
//
// Dispatch is tri-state. A message either reaches a cached handler
// (delivered), hits a registered target with no handler for the method
// (hard miss, dropped immediately - this signals a registration bug and
// is never retried), or addresses an unknown target (soft miss, queued
// for delivery when the target registers, or dropped when queuing is
// disabled). Route and RouteBinary report which case occurred through a
// Status value rather than a bare bool so callers and telemetry can tell
// the cases apart.
//
// A Router is safe for concurrent use. Handlers are invoked outside the
// router's lock, so a handler may re-enter the router - register
// targets, route messages, flush the queue - without deadlocking.
// Dispatch never panics across the routing boundary: a panicking handler
// is recovered and logged.
package router

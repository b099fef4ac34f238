package router

// Status reports the outcome of routing a single message.
type Status int

const (
	// StatusDelivered means a cached handler was invoked synchronously.
	StatusDelivered Status = iota
	// StatusQueued means the target is unknown and the message was
	// accepted for later delivery.
	StatusQueued
	// StatusDroppedNoHandler means the target is registered but has no
	// handler for the method (hard miss, never retried).
	StatusDroppedNoHandler
	// StatusDroppedUnknownTarget means the target is unknown and
	// queuing is disabled.
	StatusDroppedUnknownTarget
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusQueued:
		return "queued"
	case StatusDroppedNoHandler:
		return "dropped_no_handler"
	case StatusDroppedUnknownTarget:
		return "dropped_unknown_target"
	default:
		return "unknown"
	}
}

// Accepted reports whether the message was delivered or queued, i.e.
// not dropped. This collapses Status to the accept/drop boolean the
// engine-side API historically exposed.
func (s Status) Accepted() bool {
	return s == StatusDelivered || s == StatusQueued
}

package router

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/gameframework/metric"
)

// DefaultMaxQueueSize is the default bound on the pending message queue.
const DefaultMaxQueueSize = 1000

// Handler is a cached callback for text messages on a (target, method)
// pair.
type Handler func(method, data string)

// BinaryHandler is a cached callback for binary messages on a
// (target, method) pair.
type BinaryHandler func(method string, data []byte)

// handlerKey is the composite cache key for method handlers. A struct
// key instead of a concatenated string means target and method names
// may contain any characters without colliding.
type handlerKey struct {
	target string
	method string
}

// TargetInfo describes a registered target.
type TargetInfo struct {
	Name      string `json:"name"`
	Singleton bool   `json:"singleton"`
	Methods   int    `json:"methods"`
}

// Statistics holds delivery counters and registration gauges. The gauge
// fields are derived from the registry state and recomputable at any
// time; the counters are monotonic until ResetStatistics.
type Statistics struct {
	MessagesRouted    int64 `json:"messages_routed"`
	MessagesDropped   int64 `json:"messages_dropped"`
	RegisteredTargets int   `json:"registered_targets"`
	CachedHandlers    int   `json:"cached_handlers"`
	QueuedMessages    int   `json:"queued_messages"`
}

// queuedMessage is a message held for a target that has not registered.
type queuedMessage struct {
	target   string
	method   string
	text     string
	binary   []byte
	isBinary bool
}

func (q queuedMessage) kind() string {
	if q.isBinary {
		return metric.KindBinary
	}
	return metric.KindText
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches bridge metrics. Nil disables instrumentation.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithQueueing enables or disables queuing for unknown targets.
// Enabled by default.
func WithQueueing(enabled bool) Option {
	return func(r *Router) {
		r.queueUnknown = enabled
	}
}

// WithMaxQueueSize sets the queue bound. Values below 1 are clamped.
func WithMaxQueueSize(n int) Option {
	return func(r *Router) {
		if n < 1 {
			n = 1
		}
		r.maxQueueSize = n
	}
}

// Router routes text and binary messages to cached handlers by
// (target, method). It owns the target registry, the handler caches,
// and the pending message queue.
type Router struct {
	mu sync.Mutex

	targets        map[string]any
	singletons     map[string]bool
	handlers       map[handlerKey]Handler
	binaryHandlers map[handlerKey]BinaryHandler
	queue          []queuedMessage

	queueUnknown bool
	maxQueueSize int

	stats Statistics

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New creates a Router with queuing enabled and the default queue bound.
func New(opts ...Option) *Router {
	r := &Router{
		targets:        make(map[string]any),
		singletons:     make(map[string]bool),
		handlers:       make(map[handlerKey]Handler),
		binaryHandlers: make(map[handlerKey]BinaryHandler),
		queueUnknown:   true,
		maxQueueSize:   DefaultMaxQueueSize,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With("component", "router")
	return r
}

// RegisterTarget registers a receiver under name. A nil target is
// rejected. When singleton is set and the name is already occupied the
// registration is rejected and the prior occupant retained; both
// rejections log a warning and leave the router unchanged. A successful
// registration flushes the pending queue so messages queued for this
// target are delivered.
func (r *Router) RegisterTarget(name string, target any, singleton bool) {
	if target == nil {
		r.logger.Warn("cannot register nil target", "target", name)
		return
	}

	r.mu.Lock()
	if singleton {
		if _, occupied := r.targets[name]; occupied {
			r.mu.Unlock()
			r.logger.Warn("singleton target already registered", "target", name)
			return
		}
	}

	r.targets[name] = target
	r.singletons[name] = singleton
	r.stats.RegisteredTargets = len(r.targets)
	r.recordRegistrationsLocked()
	r.mu.Unlock()

	r.logger.Info("registered target", "target", name, "singleton", singleton)

	r.FlushQueue()
}

// UnregisterTarget removes a target and purges every cached handler for
// it, text and binary. No-op when the target is unknown. Messages
// routed to the name afterwards are treated as soft misses again.
func (r *Router) UnregisterTarget(name string) {
	r.mu.Lock()
	if _, exists := r.targets[name]; !exists {
		r.mu.Unlock()
		return
	}

	delete(r.targets, name)
	delete(r.singletons, name)

	for key := range r.handlers {
		if key.target == name {
			delete(r.handlers, key)
		}
	}
	for key := range r.binaryHandlers {
		if key.target == name {
			delete(r.binaryHandlers, key)
		}
	}

	r.stats.RegisteredTargets = len(r.targets)
	r.stats.CachedHandlers = len(r.handlers) + len(r.binaryHandlers)
	r.recordRegistrationsLocked()
	r.mu.Unlock()

	r.logger.Info("unregistered target", "target", name)
}

// IsTargetRegistered reports whether name has a registered receiver.
func (r *Router) IsTargetRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.targets[name]
	return exists
}

// Target returns the receiver registered under name.
func (r *Router) Target(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, exists := r.targets[name]
	return target, exists
}

// Targets returns information about every registered target, sorted by
// name.
func (r *Router) Targets() []TargetInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	methodCounts := make(map[string]int, len(r.targets))
	for key := range r.handlers {
		methodCounts[key.target]++
	}
	for key := range r.binaryHandlers {
		methodCounts[key.target]++
	}

	infos := make([]TargetInfo, 0, len(r.targets))
	for name := range r.targets {
		infos = append(infos, TargetInfo{
			Name:      name,
			Singleton: r.singletons[name],
			Methods:   methodCounts[name],
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// RegisterMethod caches a text handler for (target, method),
// overwriting any prior handler for the pair. This is the sole dispatch
// fast path; there is no fallback lookup mechanism.
func (r *Router) RegisterMethod(target, method string, handler Handler) {
	if handler == nil {
		r.logger.Warn("cannot register nil handler", "target", target, "method", method)
		return
	}

	r.mu.Lock()
	r.handlers[handlerKey{target, method}] = handler
	r.stats.CachedHandlers = len(r.handlers) + len(r.binaryHandlers)
	r.recordRegistrationsLocked()
	r.mu.Unlock()

	r.logger.Debug("registered method", "target", target, "method", method)
}

// RegisterBinaryMethod caches a binary handler for (target, method),
// overwriting any prior handler for the pair.
func (r *Router) RegisterBinaryMethod(target, method string, handler BinaryHandler) {
	if handler == nil {
		r.logger.Warn("cannot register nil binary handler", "target", target, "method", method)
		return
	}

	r.mu.Lock()
	r.binaryHandlers[handlerKey{target, method}] = handler
	r.stats.CachedHandlers = len(r.handlers) + len(r.binaryHandlers)
	r.recordRegistrationsLocked()
	r.mu.Unlock()

	r.logger.Debug("registered binary method", "target", target, "method", method)
}

// UnregisterMethod removes the cached handlers for one (target, method)
// pair from both caches.
func (r *Router) UnregisterMethod(target, method string) {
	r.mu.Lock()
	key := handlerKey{target, method}
	delete(r.handlers, key)
	delete(r.binaryHandlers, key)
	r.stats.CachedHandlers = len(r.handlers) + len(r.binaryHandlers)
	r.recordRegistrationsLocked()
	r.mu.Unlock()
}

// Route dispatches a text message. The handler, when cached, is invoked
// synchronously on the calling goroutine before Route returns.
func (r *Router) Route(target, method, data string) Status {
	r.mu.Lock()
	handler, ok := r.handlers[handlerKey{target, method}]
	if ok {
		r.stats.MessagesRouted++
		r.mu.Unlock()

		r.metrics.RecordMessageRouted(metric.KindText)
		r.invoke(target, method, func() { handler(method, data) })
		return StatusDelivered
	}

	if _, known := r.targets[target]; known {
		r.stats.MessagesDropped++
		r.mu.Unlock()

		r.metrics.RecordMessageDropped(metric.KindText, metric.ReasonNoHandler)
		r.logger.Warn("no handler for method", "target", target, "method", method)
		return StatusDroppedNoHandler
	}

	if r.queueUnknown {
		r.enqueueLocked(queuedMessage{target: target, method: method, text: data})
		r.mu.Unlock()
		return StatusQueued
	}

	r.stats.MessagesDropped++
	r.mu.Unlock()

	r.metrics.RecordMessageDropped(metric.KindText, metric.ReasonUnknownTarget)
	r.logger.Warn("unknown target", "target", target, "method", method)
	return StatusDroppedUnknownTarget
}

// RouteBinary dispatches a binary message with the same tri-state
// policy as Route, against the binary handler cache.
func (r *Router) RouteBinary(target, method string, data []byte) Status {
	r.mu.Lock()
	handler, ok := r.binaryHandlers[handlerKey{target, method}]
	if ok {
		r.stats.MessagesRouted++
		r.mu.Unlock()

		r.metrics.RecordMessageRouted(metric.KindBinary)
		r.invoke(target, method, func() { handler(method, data) })
		return StatusDelivered
	}

	if _, known := r.targets[target]; known {
		r.stats.MessagesDropped++
		r.mu.Unlock()

		r.metrics.RecordMessageDropped(metric.KindBinary, metric.ReasonNoHandler)
		r.logger.Warn("no binary handler for method", "target", target, "method", method)
		return StatusDroppedNoHandler
	}

	if r.queueUnknown {
		r.enqueueLocked(queuedMessage{target: target, method: method, binary: data, isBinary: true})
		r.mu.Unlock()
		return StatusQueued
	}

	r.stats.MessagesDropped++
	r.mu.Unlock()

	r.metrics.RecordMessageDropped(metric.KindBinary, metric.ReasonUnknownTarget)
	r.logger.Warn("unknown target for binary message", "target", target, "method", method)
	return StatusDroppedUnknownTarget
}

// FlushQueue snapshots the pending queue, clears it, and re-routes every
// entry in its original enqueue order. Entries whose target is still
// unknown are re-queued by the routing path itself; entries that now
// resolve to a registered target without a handler are hard misses and
// dropped. Entries re-queued during the flush land behind any messages
// queued concurrently by handlers running mid-flush; relative order
// against new arrivals is not guaranteed.
//
// Called automatically on every successful RegisterTarget.
func (r *Router) FlushQueue() {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return
	}

	pending := r.queue
	r.queue = nil
	r.stats.QueuedMessages = 0
	r.metrics.RecordQueueDepth(0)
	r.mu.Unlock()

	for _, msg := range pending {
		if msg.isBinary {
			r.RouteBinary(msg.target, msg.method, msg.binary)
		} else {
			r.Route(msg.target, msg.method, msg.text)
		}
	}
}

// ClearQueue drops all pending messages unconditionally and returns the
// number cleared. Used on session teardown so stale messages are not
// delivered into a restarted engine session.
func (r *Router) ClearQueue() int {
	r.mu.Lock()
	cleared := len(r.queue)
	r.queue = nil
	r.stats.QueuedMessages = 0
	r.metrics.RecordQueueDepth(0)
	r.mu.Unlock()

	if cleared > 0 {
		r.logger.Info("cleared message queue", "count", cleared)
	}
	return cleared
}

// QueueLen returns the number of pending messages.
func (r *Router) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// SetQueueing enables or disables queuing for unknown targets. Disabling
// does not clear already-queued messages.
func (r *Router) SetQueueing(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueUnknown = enabled
}

// SetMaxQueueSize updates the queue bound, clamping to a minimum of 1.
// When the new bound is below current occupancy the oldest entries are
// evicted until the queue fits.
func (r *Router) SetMaxQueueSize(n int) {
	if n < 1 {
		n = 1
	}

	var evicted []queuedMessage
	r.mu.Lock()
	r.maxQueueSize = n
	for len(r.queue) > r.maxQueueSize {
		evicted = append(evicted, r.queue[0])
		r.queue = r.queue[1:]
		r.stats.MessagesDropped++
	}
	r.stats.QueuedMessages = len(r.queue)
	r.metrics.RecordQueueDepth(len(r.queue))
	r.mu.Unlock()

	for _, msg := range evicted {
		r.metrics.RecordMessageDropped(msg.kind(), metric.ReasonQueueOverflow)
		r.logger.Warn("queue trimmed, dropping oldest message", "target", msg.target, "method", msg.method)
	}
}

// Statistics returns a snapshot of the router counters and gauges.
func (r *Router) Statistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ResetStatistics zeroes the routed/dropped counters. The registration
// gauges are recomputed from the live registry state, not reset.
func (r *Router) ResetStatistics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.MessagesRouted = 0
	r.stats.MessagesDropped = 0
	r.stats.RegisteredTargets = len(r.targets)
	r.stats.CachedHandlers = len(r.handlers) + len(r.binaryHandlers)
	r.stats.QueuedMessages = len(r.queue)
}

// enqueueLocked appends a message to the queue, evicting the oldest
// entry when the bound is reached. Caller holds r.mu.
func (r *Router) enqueueLocked(msg queuedMessage) {
	if len(r.queue) >= r.maxQueueSize {
		oldest := r.queue[0]
		r.queue = r.queue[1:]
		r.stats.MessagesDropped++
		r.metrics.RecordMessageDropped(oldest.kind(), metric.ReasonQueueOverflow)
		r.logger.Warn("message queue full, dropping oldest message",
			"target", oldest.target, "method", oldest.method)
	}

	r.queue = append(r.queue, msg)
	r.stats.QueuedMessages = len(r.queue)
	r.metrics.RecordQueueDepth(len(r.queue))
	r.logger.Debug("queued message for unregistered target", "target", msg.target, "method", msg.method)
}

// invoke runs a handler outside the router lock. A panicking handler
// must not take the dispatch path down with it.
func (r *Router) invoke(target, method string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "target", target, "method", method, "panic", rec)
		}
	}()
	fn()
}

// recordRegistrationsLocked pushes the registration gauges to metrics.
// Caller holds r.mu.
func (r *Router) recordRegistrationsLocked() {
	r.metrics.RecordRegistrations(len(r.targets), len(r.handlers)+len(r.binaryHandlers))
}

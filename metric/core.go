package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message kind labels
const (
	KindText   = "text"
	KindBinary = "binary"
)

// Drop reason labels
const (
	ReasonNoHandler     = "no_handler"
	ReasonUnknownTarget = "unknown_target"
	ReasonQueueOverflow = "queue_overflow"
	ReasonChecksum      = "checksum"
)

// Transfer failure reason labels
const (
	TransferFailChecksum = "checksum"
	TransferFailExpired  = "expired"
	TransferFailEvicted  = "evicted"
	TransferFailAborted  = "aborted"
	TransferFailProtocol = "protocol"
)

// Metrics contains the core bridge metrics.
type Metrics struct {
	// Router metrics
	MessagesRouted    *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	QueuedMessages    prometheus.Gauge
	RegisteredTargets prometheus.Gauge
	CachedHandlers    prometheus.Gauge

	// Binary transfer metrics
	TransfersActive    prometheus.Gauge
	TransfersCompleted prometheus.Counter
	TransfersFailed    *prometheus.CounterVec
	TransferBytes      prometheus.Counter

	// Outbound transport metrics
	OutboundSent   *prometheus.CounterVec
	OutboundErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all bridge metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "router",
				Name:      "messages_routed_total",
				Help:      "Total number of messages delivered to a cached handler",
			},
			[]string{"kind"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "router",
				Name:      "messages_dropped_total",
				Help:      "Total number of messages dropped, by reason",
			},
			[]string{"kind", "reason"},
		),

		QueuedMessages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gameframework",
				Subsystem: "router",
				Name:      "queued_messages",
				Help:      "Number of messages waiting for their target to register",
			},
		),

		RegisteredTargets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gameframework",
				Subsystem: "router",
				Name:      "registered_targets",
				Help:      "Number of registered message targets",
			},
		),

		CachedHandlers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gameframework",
				Subsystem: "router",
				Name:      "cached_handlers",
				Help:      "Number of cached method handlers (text and binary)",
			},
		),

		TransfersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gameframework",
				Subsystem: "transfer",
				Name:      "active",
				Help:      "Number of in-flight chunked transfers",
			},
		),

		TransfersCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "transfer",
				Name:      "completed_total",
				Help:      "Total number of chunked transfers reassembled and delivered",
			},
		),

		TransfersFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "transfer",
				Name:      "failed_total",
				Help:      "Total number of chunked transfers discarded, by reason",
			},
			[]string{"reason"},
		),

		TransferBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "transfer",
				Name:      "bytes_total",
				Help:      "Total bytes delivered through completed transfers",
			},
		),

		OutboundSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "outbound",
				Name:      "sent_total",
				Help:      "Total number of frames sent to the UI side",
			},
			[]string{"kind"},
		),

		OutboundErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gameframework",
				Subsystem: "outbound",
				Name:      "errors_total",
				Help:      "Total number of outbound send failures",
			},
		),
	}
}

// RecordMessageRouted increments the routed counter. Nil-safe.
func (m *Metrics) RecordMessageRouted(kind string) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(kind).Inc()
}

// RecordMessageDropped increments the dropped counter. Nil-safe.
func (m *Metrics) RecordMessageDropped(kind, reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(kind, reason).Inc()
}

// RecordQueueDepth updates the queued-message gauge. Nil-safe.
func (m *Metrics) RecordQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueuedMessages.Set(float64(depth))
}

// RecordRegistrations updates the target and handler gauges. Nil-safe.
func (m *Metrics) RecordRegistrations(targets, handlers int) {
	if m == nil {
		return
	}
	m.RegisteredTargets.Set(float64(targets))
	m.CachedHandlers.Set(float64(handlers))
}

// RecordTransfersActive updates the active transfer gauge. Nil-safe.
func (m *Metrics) RecordTransfersActive(n int) {
	if m == nil {
		return
	}
	m.TransfersActive.Set(float64(n))
}

// RecordTransferCompleted increments completion counters. Nil-safe.
func (m *Metrics) RecordTransferCompleted(bytes int) {
	if m == nil {
		return
	}
	m.TransfersCompleted.Inc()
	m.TransferBytes.Add(float64(bytes))
}

// RecordTransferFailed increments the failure counter. Nil-safe.
func (m *Metrics) RecordTransferFailed(reason string) {
	if m == nil {
		return
	}
	m.TransfersFailed.WithLabelValues(reason).Inc()
}

// RecordOutboundSent increments the outbound counter. Nil-safe.
func (m *Metrics) RecordOutboundSent(kind string) {
	if m == nil {
		return
	}
	m.OutboundSent.WithLabelValues(kind).Inc()
}

// RecordOutboundError increments the outbound error counter. Nil-safe.
func (m *Metrics) RecordOutboundError() {
	if m == nil {
		return
	}
	m.OutboundErrors.Inc()
}

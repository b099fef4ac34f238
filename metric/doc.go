// Package metric provides Prometheus instrumentation for the bridge.
//
// MetricsRegistry owns a prometheus.Registry preloaded with Go runtime
// collectors and the core bridge metrics. Components receive an optional
// *Metrics; a nil value disables instrumentation without branching at
// every call site (the Record* helpers are nil-safe).
package metric

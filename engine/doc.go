// Package engine defines the sink interface through which the bridge
// drives an embedded game engine instance, together with the quality
// setting model shared across engines.
//
// The bridge never talks to Unity or Unreal directly. Platform builds
// supply a Sink implementation backed by the real engine process; tests
// and the standalone daemon use Headless, an in-memory implementation
// that records every call.
package engine

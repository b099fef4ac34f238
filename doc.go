// Package gameframework provides the message routing and delivery
// subsystem for embedding a game engine (Unity, Unreal) inside a
// cross-platform UI application: named targets, method handlers, a
// bounded queue for early messages, chunked binary transfer with
// integrity verification, and engine lifecycle control.
//
// # Architecture
//
// The bridge sits between the UI side and the embedded engine:
//
//	┌─────────────────────────────────────┐
//	│            UI frontend              │  Flutter/RN/native shell
//	└──────────────────┬──────────────────┘
//	                   │ frames (NATS / WebSocket / loopback)
//	┌──────────────────┴──────────────────┐
//	│              transport              │  JSON frame envelope
//	└──────────────────┬──────────────────┘
//	┌──────────────────┴──────────────────┐
//	│               bridge                │  facade, lifecycle,
//	│   ┌──────────┐      ┌───────────┐   │  quality settings
//	│   │  router  │      │ transfer  │   │
//	│   │ dispatch │      │ reassembly│   │
//	│   └──────────┘      └───────────┘   │
//	└──────────────────┬──────────────────┘
//	┌──────────────────┴──────────────────┐
//	│            engine.Sink              │  embedded engine surface
//	└─────────────────────────────────────┘
//
// # Dispatch Model
//
// Inbound messages address a (target, method) pair. Dispatch is
// tri-state:
//
//   - delivered: a registered handler was invoked synchronously
//   - queued: the target is unknown; the message waits, bounded, until
//     the target registers (oldest messages are dropped on overflow)
//   - dropped: the target is registered but lacks the method (a
//     registration bug, never retried), or queuing is disabled
//
// Targets may be registered as singletons; a second registration under
// an occupied singleton name is rejected and the original kept.
//
// # Packages
//
// Core:
//   - router: target registry, handler cache, bounded queue, dispatch
//   - transfer: chunked binary transfer, CRC32 verification
//   - bridge: facade tying transport, router, transfers and engine
//   - engine: engine control surface and a headless implementation
//
// Infrastructure:
//   - transport: frame codec and transport interface, loopback
//   - transport/natsbridge: NATS pub/sub transport
//   - transport/wsbridge: WebSocket server transport
//   - config: daemon configuration (YAML/JSON)
//   - metric: Prometheus metrics
//   - errors: classified error handling
//
// # Binary
//
// cmd/gameframeworkd runs the bridge as a standalone daemon with a
// headless engine sink, selectable transport and a /metrics endpoint.
package gameframework

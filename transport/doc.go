// Package transport defines the wire boundary between the engine side
// and the UI side of the bridge: a JSON Frame envelope covering plain
// text messages, small binary messages and the pieces of a chunked
// transfer, plus the Transport interface that moves frames in both
// directions.
//
// Concrete transports live in subpackages (natsbridge, wsbridge). The
// Loopback transport in this package connects two endpoints in process
// and backs the default development mode and the test suites.
package transport

// Package bridge is the facade tying the pieces of the message bridge
// together: it pumps frames between a transport and the router, feeds
// chunked transfer pieces through the reassembly manager, relays
// lifecycle and quality-setting commands to the embedded engine, and
// sends outbound messages from the engine side to the UI side.
//
// The bridge registers itself as the singleton control target "bridge"
// on its own router, so lifecycle commands (pause, resume, quit,
// loadLevel, executeConsoleCommand, applyQualitySettings) arrive through
// the same dispatch path as application messages and benefit from the
// same queuing semantics.
package bridge

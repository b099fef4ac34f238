package transport

import (
	"context"
	"sync"

	"github.com/xraph/gameframework/errors"
)

// Handler receives inbound frames. Transports invoke it sequentially
// per connection; implementations that need concurrency fan out
// themselves.
type Handler func(Frame)

// Transport moves frames between the engine side and the UI side.
type Transport interface {
	// Start connects the transport and begins delivering inbound frames
	// to the handler set via SetHandler.
	Start(ctx context.Context) error
	// Send transmits one frame to the remote side.
	Send(ctx context.Context, frame Frame) error
	// SetHandler installs the inbound frame handler. Must be called
	// before Start.
	SetHandler(handler Handler)
	// Close shuts the transport down. Send after Close returns
	// ErrTransportClosed.
	Close() error
}

// Loopback is an in-process Transport. Two endpoints created by
// NewLoopbackPair deliver frames synchronously to each other's handler.
type Loopback struct {
	mu      sync.Mutex
	peer    *Loopback
	handler Handler
	started bool
	closed  bool
}

// NewLoopbackPair creates two connected loopback endpoints.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{}
	b := &Loopback{}
	a.peer = b
	b.peer = a
	return a, b
}

// SetHandler installs the inbound frame handler.
func (l *Loopback) SetHandler(handler Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
}

// Start marks the endpoint ready to receive.
func (l *Loopback) Start(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.ErrTransportClosed
	}
	if l.started {
		return errors.ErrAlreadyStarted
	}
	l.started = true
	return nil
}

// Send validates the frame and delivers it synchronously to the peer's
// handler. A peer that has not started or has no handler drops the
// frame silently, matching a remote side that is not listening yet.
func (l *Loopback) Send(_ context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.ErrTransportClosed
	}
	if !l.started {
		l.mu.Unlock()
		return errors.ErrNotConnected
	}
	peer := l.peer
	l.mu.Unlock()

	peer.mu.Lock()
	handler := peer.handler
	ready := peer.started && !peer.closed
	peer.mu.Unlock()

	if ready && handler != nil {
		handler(frame)
	}
	return nil
}

// Close shuts the endpoint down.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

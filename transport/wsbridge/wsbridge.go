// Package wsbridge implements the bridge transport as a WebSocket
// server. The UI side dials in; frames travel as JSON text messages in
// both directions over the socket.
//
// One UI connection is active at a time. A newly accepted connection
// replaces the previous one, which matches an embedding UI that
// reconnects after a reload.
package wsbridge

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/transport"
)

const (
	writeTimeout = 10 * time.Second

	// DefaultPath is the HTTP path the UI dials.
	DefaultPath = "/bridge"
)

// Option configures the transport.
type Option func(*Transport) error

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) error {
		if logger != nil {
			t.logger = logger
		}
		return nil
	}
}

// WithPath overrides the HTTP path the UI dials.
func WithPath(path string) Option {
	return func(t *Transport) error {
		if path == "" || path[0] != '/' {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "wsbridge", "WithPath", "path must start with /")
		}
		t.path = path
		return nil
	}
}

// WithCheckOrigin overrides the origin check of the upgrader. The
// default accepts any origin; embedding UIs load from file:// or
// app-local origins that never match the host.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(t *Transport) error {
		t.upgrader.CheckOrigin = fn
		return nil
	}
}

// Transport is a transport.Transport that serves a WebSocket endpoint.
type Transport struct {
	addr     string
	path     string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	server *http.Server

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	handler transport.Handler
	started bool
	closed  bool
}

// New creates a WebSocket transport listening on addr.
func New(addr string, opts ...Option) (*Transport, error) {
	if addr == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "wsbridge", "New", "listen address required")
	}

	t := &Transport{
		addr:   addr,
		path:   DefaultPath,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetHandler installs the inbound frame handler. Must be called before
// Start.
func (t *Transport) SetHandler(handler transport.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Start begins listening and serving WebSocket upgrades.
func (t *Transport) Start(_ context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.ErrTransportClosed
	}
	if t.started {
		t.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return errors.WrapTransient(err, "wsbridge", "Start", "listen")
	}

	mux := http.NewServeMux()
	mux.Handle(t.path, t)
	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if serveErr := t.server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			t.logger.Error("websocket server stopped", "error", serveErr)
		}
	}()

	t.logger.Info("websocket transport started", "addr", listener.Addr().String(), "path", t.path)
	return nil
}

// ServeHTTP upgrades an incoming request and runs its read loop. It is
// exported so the transport can be mounted on an existing mux.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	t.mu.Lock()
	old := t.conn
	t.conn = conn
	t.mu.Unlock()

	if old != nil {
		t.logger.Info("replacing previous ui connection")
		_ = old.Close()
	}

	t.logger.Info("ui connected", "remote", conn.RemoteAddr().String())
	t.readLoop(conn)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("ui connection lost", "error", err)
			}
			return
		}

		frame, err := transport.Decode(data)
		if err != nil {
			t.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()

		if handler != nil {
			handler(frame)
		}
	}
}

// Send writes one frame to the connected UI. Returns ErrNotConnected
// when no UI is attached.
func (t *Transport) Send(_ context.Context, frame transport.Frame) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return errors.ErrTransportClosed
	}
	if conn == nil {
		return errors.ErrNotConnected
	}

	data, err := frame.Encode()
	if err != nil {
		return err
	}

	// Gorilla allows one concurrent writer per connection.
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "wsbridge", "Send", "write frame")
	}
	return nil
}

// Close shuts the server and any active connection down.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	server := t.server
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return errors.WrapTransient(err, "wsbridge", "Close", "server shutdown")
		}
	}
	return nil
}

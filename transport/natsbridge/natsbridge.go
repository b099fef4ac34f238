// Package natsbridge implements the bridge transport over NATS core
// pub/sub. The engine side subscribes to "<prefix>.in" for frames coming
// from the UI and publishes outbound frames to "<prefix>.out"; the UI
// side mirrors the two subjects.
package natsbridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/transport"
)

// DefaultSubjectPrefix is the subject prefix when none is configured.
const DefaultSubjectPrefix = "gameframework.bridge"

// Option configures the transport.
type Option func(*Transport) error

// WithSubjectPrefix overrides the subject prefix.
func WithSubjectPrefix(prefix string) Option {
	return func(t *Transport) error {
		if prefix == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "natsbridge", "WithSubjectPrefix", "empty prefix")
		}
		t.prefix = prefix
		return nil
	}
}

// WithName sets the NATS client name for identification.
func WithName(name string) Option {
	return func(t *Transport) error {
		t.name = name
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) error {
		if logger != nil {
			t.logger = logger
		}
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(t *Transport) error {
		t.reconnectWait = d
		return nil
	}
}

// WithMaxReconnects sets the maximum reconnection attempts (-1 for
// infinite).
func WithMaxReconnects(n int) Option {
	return func(t *Transport) error {
		t.maxReconnects = n
		return nil
	}
}

// WithCredentials sets username and password authentication.
func WithCredentials(username, password string) Option {
	return func(t *Transport) error {
		t.username = username
		t.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(t *Transport) error {
		t.token = token
		return nil
	}
}

// Transport is a transport.Transport backed by a NATS connection.
type Transport struct {
	url    string
	prefix string
	name   string

	reconnectWait time.Duration
	maxReconnects int
	username      string
	password      string
	token         string

	logger *slog.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	sub     *nats.Subscription
	handler transport.Handler
	started bool
	closed  bool
}

// New creates a NATS transport for the given server URL. The connection
// is established by Start.
func New(url string, opts ...Option) (*Transport, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsbridge", "New", "server url required")
	}

	t := &Transport{
		url:           url,
		prefix:        DefaultSubjectPrefix,
		name:          "gameframework-bridge",
		reconnectWait: 2 * time.Second,
		maxReconnects: -1,
		logger:        slog.Default(),
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

// Start connects to the server and subscribes to the inbound subject.
func (t *Transport) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.ErrTransportClosed
	}
	if t.started {
		return errors.ErrAlreadyStarted
	}

	natsOpts := []nats.Option{
		nats.Name(t.name),
		nats.ReconnectWait(t.reconnectWait),
		nats.MaxReconnects(t.maxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			t.logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			t.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			t.logger.Info("nats connection closed")
		}),
	}
	if t.username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(t.username, t.password))
	}
	if t.token != "" {
		natsOpts = append(natsOpts, nats.Token(t.token))
	}

	conn, err := nats.Connect(t.url, natsOpts...)
	if err != nil {
		return errors.WrapTransient(err, "natsbridge", "Start", "connect")
	}

	sub, err := conn.Subscribe(t.prefix+".in", func(msg *nats.Msg) {
		t.dispatch(msg.Data)
	})
	if err != nil {
		conn.Close()
		return errors.WrapTransient(err, "natsbridge", "Start", "subscribe")
	}

	t.conn = conn
	t.sub = sub
	t.started = true
	t.logger.Info("nats transport started",
		"url", conn.ConnectedUrl(),
		"inbound", t.prefix+".in",
		"outbound", t.prefix+".out",
	)
	return nil
}

// Send publishes one frame to the outbound subject.
func (t *Transport) Send(_ context.Context, frame transport.Frame) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	started := t.started
	t.mu.Unlock()

	if closed {
		return errors.ErrTransportClosed
	}
	if !started {
		return errors.ErrNotConnected
	}

	data, err := frame.Encode()
	if err != nil {
		return err
	}
	if err := conn.Publish(t.prefix+".out", data); err != nil {
		return errors.WrapTransient(err, "natsbridge", "Send", "publish")
	}
	return nil
}

// Close drains the subscription and closes the connection. Draining lets
// in-flight inbound frames finish dispatching.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return errors.WrapTransient(err, "natsbridge", "Close", "drain")
	}
	return nil
}

// dispatch decodes one wire message and hands it to the handler. Bad
// frames are logged and dropped; one malformed producer must not take
// the subscription down.
func (t *Transport) dispatch(data []byte) {
	frame, err := transport.Decode(data)
	if err != nil {
		t.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		handler(frame)
	}
}

package bridge

import (
	"context"
	"encoding/json"
	"hash/crc32"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/gameframework/engine"
	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/metric"
	"github.com/xraph/gameframework/router"
	"github.com/xraph/gameframework/transfer"
	"github.com/xraph/gameframework/transport"
)

// ControlTarget is the singleton target name the bridge registers for
// lifecycle and engine control messages.
const ControlTarget = "bridge"

// Control methods dispatched to the bridge itself.
const (
	MethodPause          = "pause"
	MethodResume         = "resume"
	MethodQuit           = "quit"
	MethodLoadLevel      = "loadLevel"
	MethodExecuteConsole = "executeConsoleCommand"
	MethodApplyQuality   = "applyQualitySettings"
	MethodOnLevelLoaded  = "onLevelLoaded"
)

// Event identifies a lifecycle transition reported to listeners.
type Event string

// Lifecycle events.
const (
	EventPaused      Event = "paused"
	EventResumed     Event = "resumed"
	EventQuit        Event = "quit"
	EventLevelLoaded Event = "level_loaded"
)

// Listener receives lifecycle events. Detail carries the level name for
// EventLevelLoaded and is empty otherwise.
type Listener func(event Event, detail string)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics attaches bridge metrics to the router, the transfer
// manager and the outbound path.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = metrics
	}
}

// WithRouterOptions forwards options to the embedded router.
func WithRouterOptions(opts ...router.Option) Option {
	return func(b *Bridge) {
		b.routerOpts = append(b.routerOpts, opts...)
	}
}

// WithTransferOptions forwards options to the transfer manager.
func WithTransferOptions(opts ...transfer.ManagerOption) Option {
	return func(b *Bridge) {
		b.transferOpts = append(b.transferOpts, opts...)
	}
}

// WithChunkSize sets the chunk size for outbound binary transfers.
func WithChunkSize(size int) Option {
	return func(b *Bridge) {
		b.chunker = transfer.NewChunker(size)
	}
}

// WithRateLimit caps outbound frames per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(b *Bridge) {
		if perSecond > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithListener registers a lifecycle listener.
func WithListener(fn Listener) Option {
	return func(b *Bridge) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// Bridge connects a transport, a router, a transfer manager and an
// engine sink into one runnable unit.
type Bridge struct {
	router    *router.Router
	transfers *transfer.Manager
	chunker   *transfer.Chunker
	transport transport.Transport
	sink      engine.Sink

	logger  *slog.Logger
	metrics *metric.Metrics
	limiter *rate.Limiter

	routerOpts   []router.Option
	transferOpts []transfer.ManagerOption
	listeners    []Listener

	mu           sync.Mutex
	paused       bool
	currentLevel string
	started      bool
	stopped      bool
}

// New creates a Bridge over the given transport and engine sink. Call
// Start to begin processing frames.
func New(tr transport.Transport, sink engine.Sink, opts ...Option) *Bridge {
	b := &Bridge{
		transport: tr,
		sink:      sink,
		chunker:   transfer.NewChunker(transfer.DefaultChunkSize),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.router = router.New(append([]router.Option{
		router.WithLogger(b.logger),
		router.WithMetrics(b.metrics),
	}, b.routerOpts...)...)

	b.transfers = transfer.NewManager(
		b.deliverTransfer,
		append([]transfer.ManagerOption{
			transfer.WithLogger(b.logger),
			transfer.WithMetrics(b.metrics),
		}, b.transferOpts...)...,
	)

	return b
}

// Router exposes the embedded router so the application can register
// its own targets and methods.
func (b *Bridge) Router() *router.Router {
	return b.router
}

// Start wires the transport to the router, registers the bridge's own
// control target and starts the transfer manager.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	b.registerControlTarget()

	b.transport.SetHandler(b.handleFrame)
	if err := b.transport.Start(ctx); err != nil {
		return errors.Wrap(err, "bridge", "Start", "start transport")
	}

	b.transfers.Start(ctx)
	b.logger.Info("bridge started")
	return nil
}

// Close shuts down the transport and the transfer manager. Pending
// queued messages and in-flight transfers are discarded.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	b.router.ClearQueue()
	b.transfers.AbortAll()

	transportErr := b.transport.Close()
	transferErr := b.transfers.Close()
	if transportErr != nil {
		return errors.Wrap(transportErr, "bridge", "Close", "close transport")
	}
	return transferErr
}

// registerControlTarget installs the bridge's own lifecycle handlers.
func (b *Bridge) registerControlTarget() {
	b.router.RegisterMethod(ControlTarget, MethodPause, func(string, string) {
		b.Pause()
	})
	b.router.RegisterMethod(ControlTarget, MethodResume, func(string, string) {
		b.Resume()
	})
	b.router.RegisterMethod(ControlTarget, MethodQuit, func(string, string) {
		b.Quit()
	})
	b.router.RegisterMethod(ControlTarget, MethodLoadLevel, func(_, level string) {
		b.LoadLevel(context.Background(), level)
	})
	b.router.RegisterMethod(ControlTarget, MethodExecuteConsole, func(_, cmd string) {
		b.ExecuteConsoleCommand(cmd)
	})
	b.router.RegisterMethod(ControlTarget, MethodApplyQuality, func(_, payload string) {
		if err := b.ApplyQualitySettings(payload); err != nil {
			b.logger.Warn("rejected quality settings payload", "error", err)
		}
	})
	b.router.RegisterTarget(ControlTarget, b, true)
}

// handleFrame dispatches one inbound frame from the transport.
func (b *Bridge) handleFrame(frame transport.Frame) {
	switch frame.Kind {
	case transport.KindText:
		b.router.Route(frame.Target, frame.Method, frame.Text)

	case transport.KindBinary:
		// Standalone binary frames may carry an inline checksum.
		if frame.Transfer != nil && frame.Transfer.Checksum != 0 {
			if err := VerifyPayload(frame.Data, frame.Transfer.Checksum); err != nil {
				b.logger.Warn("dropping binary frame with bad checksum",
					"target", frame.Target,
					"method", frame.Method,
				)
				b.metrics.RecordMessageDropped(metric.KindBinary, metric.ReasonChecksum)
				return
			}
		}
		b.router.RouteBinary(frame.Target, frame.Method, frame.Data)

	case transport.KindChunkHeader:
		info := frame.Transfer
		b.transfers.HandleHeader(info.ID, frame.Target, frame.Method,
			info.TotalSize, info.TotalChunks, info.Checksum)

	case transport.KindChunkData:
		b.transfers.HandleChunk(frame.Transfer.ID, frame.Transfer.Index, frame.Data)

	case transport.KindChunkFooter:
		info := frame.Transfer
		b.transfers.HandleFooter(info.ID, info.TotalSize, info.TotalChunks, info.Checksum)

	default:
		b.logger.Warn("dropping frame of unknown kind", "kind", frame.Kind)
	}
}

// deliverTransfer routes a reassembled payload like any other binary
// message.
func (b *Bridge) deliverTransfer(target, method string, data []byte) {
	b.router.RouteBinary(target, method, data)
}

// SendToUI sends a text message to the UI side.
func (b *Bridge) SendToUI(ctx context.Context, target, method, data string) error {
	if err := b.waitOutbound(ctx); err != nil {
		return err
	}

	err := b.transport.Send(ctx, transport.Frame{
		Kind:   transport.KindText,
		Target: target,
		Method: method,
		Text:   data,
	})
	if err != nil {
		b.metrics.RecordOutboundError()
		return errors.Wrap(err, "bridge", "SendToUI", "send frame")
	}
	b.metrics.RecordOutboundSent(metric.KindText)
	return nil
}

// SendBinaryToUI sends a binary payload to the UI side. Payloads larger
// than the chunk size are split into a chunked transfer.
func (b *Bridge) SendBinaryToUI(ctx context.Context, target, method string, data []byte) error {
	if len(data) <= b.chunker.ChunkSize() {
		if err := b.waitOutbound(ctx); err != nil {
			return err
		}
		err := b.transport.Send(ctx, transport.Frame{
			Kind:   transport.KindBinary,
			Target: target,
			Method: method,
			Data:   data,
		})
		if err != nil {
			b.metrics.RecordOutboundError()
			return errors.Wrap(err, "bridge", "SendBinaryToUI", "send frame")
		}
		b.metrics.RecordOutboundSent(metric.KindBinary)
		return nil
	}

	for _, piece := range b.chunker.Split(target, method, data) {
		if err := b.waitOutbound(ctx); err != nil {
			return err
		}
		if err := b.transport.Send(ctx, pieceToFrame(piece)); err != nil {
			b.metrics.RecordOutboundError()
			return errors.Wrap(err, "bridge", "SendBinaryToUI", "send chunk")
		}
		b.metrics.RecordOutboundSent(metric.KindBinary)
	}
	return nil
}

func (b *Bridge) waitOutbound(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.WrapTransient(err, "bridge", "waitOutbound", "rate limit wait")
	}
	return nil
}

func pieceToFrame(piece transfer.Piece) transport.Frame {
	frame := transport.Frame{
		Target: piece.Target,
		Method: piece.Method,
		Transfer: &transport.TransferInfo{
			ID:          piece.TransferID,
			Index:       piece.Index,
			TotalSize:   piece.TotalSize,
			TotalChunks: piece.TotalChunks,
			Checksum:    piece.Checksum,
		},
	}
	switch piece.Kind {
	case transfer.PieceHeader:
		frame.Kind = transport.KindChunkHeader
	case transfer.PieceData:
		frame.Kind = transport.KindChunkData
		frame.Data = piece.Data
	case transfer.PieceFooter:
		frame.Kind = transport.KindChunkFooter
	}
	return frame
}

// Pause suspends the engine and notifies lifecycle listeners. Pausing
// an already paused bridge is a no-op.
func (b *Bridge) Pause() {
	b.mu.Lock()
	if b.paused {
		b.mu.Unlock()
		return
	}
	b.paused = true
	b.mu.Unlock()

	b.sink.Pause()
	b.logger.Info("engine paused")
	b.notify(EventPaused, "")
}

// Resume resumes a paused engine and notifies lifecycle listeners.
func (b *Bridge) Resume() {
	b.mu.Lock()
	if !b.paused {
		b.mu.Unlock()
		return
	}
	b.paused = false
	b.mu.Unlock()

	b.sink.Resume()
	b.logger.Info("engine resumed")
	b.notify(EventResumed, "")
}

// Paused reports whether the engine is paused.
func (b *Bridge) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Quit tears the engine down, discards queued messages and in-flight
// transfers and notifies lifecycle listeners.
func (b *Bridge) Quit() {
	b.sink.Quit()

	cleared := b.router.ClearQueue()
	aborted := b.transfers.AbortAll()
	b.logger.Info("engine quit",
		"cleared_messages", cleared,
		"aborted_transfers", aborted,
	)
	b.notify(EventQuit, "")
}

// LoadLevel asks the engine to load the named level and announces the
// load to the UI side.
func (b *Bridge) LoadLevel(ctx context.Context, name string) {
	b.sink.LoadLevel(name)

	b.mu.Lock()
	b.currentLevel = name
	b.mu.Unlock()

	b.logger.Info("level loaded", "level", name)
	b.notify(EventLevelLoaded, name)

	if err := b.SendToUI(ctx, ControlTarget, MethodOnLevelLoaded, name); err != nil {
		b.logger.Warn("failed to announce level load", "level", name, "error", err)
	}
}

// CurrentLevel returns the most recently loaded level name.
func (b *Bridge) CurrentLevel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLevel
}

// ExecuteConsoleCommand runs an engine console command.
func (b *Bridge) ExecuteConsoleCommand(cmd string) {
	if cmd == "" {
		return
	}
	b.sink.ExecuteConsole(cmd)
	b.logger.Debug("console command executed", "command", cmd)
}

// ApplyQualitySettings parses a JSON quality payload and applies it to
// the engine. Fields absent from the payload keep their current values.
func (b *Bridge) ApplyQualitySettings(payload string) error {
	q := engine.UnchangedQuality()
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return errors.WrapInvalid(err, "bridge", "ApplyQualitySettings", "parse payload")
	}
	b.sink.ApplyQuality(q)
	b.logger.Debug("quality settings applied")
	return nil
}

// QualitySettings reports the engine's current quality settings.
func (b *Bridge) QualitySettings() map[string]int {
	return b.sink.Quality()
}

// VerifyPayload recomputes the CRC32 of data and compares it to sum.
// The UI side attaches the checksum to standalone binary frames that
// bypass chunking.
func VerifyPayload(data []byte, sum uint32) error {
	if crc32.ChecksumIEEE(data) != sum {
		return errors.ErrChecksumFailed
	}
	return nil
}

func (b *Bridge) notify(event Event, detail string) {
	for _, fn := range b.listeners {
		fn(event, detail)
	}
}

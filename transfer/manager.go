package transfer

import (
	"context"
	"hash/crc32"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/gameframework/errors"
	"github.com/xraph/gameframework/metric"
)

const (
	// DefaultTTL is how long an incomplete transfer is retained before
	// being discarded.
	DefaultTTL = 60 * time.Second
	// DefaultMaxActive bounds the number of concurrent in-flight
	// transfers. The oldest transfer is evicted to admit a new one.
	DefaultMaxActive = 64

	sweepInterval = 5 * time.Second
)

// DeliverFunc receives a fully reassembled, checksum-verified payload.
type DeliverFunc func(target, method string, data []byte)

// ProgressFunc is called after each newly received chunk.
type ProgressFunc func(transferID string, received, total int)

// CompleteFunc is called after a transfer is verified and delivered.
type CompleteFunc func(transferID, target, method string, size int)

// FailFunc is called when a transfer is discarded without delivery.
type FailFunc func(transferID string, err error)

type transferState struct {
	target      string
	method      string
	totalSize   int
	totalChunks int
	checksum    uint32
	chunks      map[int][]byte
	received    int
	startedAt   time.Time
}

func (t *transferState) complete() bool {
	return t.received == t.totalChunks
}

// assemble concatenates the chunks in index order.
func (t *transferState) assemble() []byte {
	data := make([]byte, 0, t.totalSize)
	for i := 0; i < t.totalChunks; i++ {
		data = append(data, t.chunks[i]...)
	}
	return data
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics attaches bridge metrics.
func WithMetrics(metrics *metric.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTTL overrides the incomplete-transfer retention period.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxActive overrides the in-flight transfer cap.
func WithMaxActive(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxActive = n
		}
	}
}

// WithProgress sets the per-chunk progress callback.
func WithProgress(fn ProgressFunc) ManagerOption {
	return func(m *Manager) {
		m.onProgress = fn
	}
}

// WithOnComplete sets the transfer completion callback. Delivery still
// goes through the deliver function; the callback is for telemetry.
func WithOnComplete(fn CompleteFunc) ManagerOption {
	return func(m *Manager) {
		m.onComplete = fn
	}
}

// WithOnFailed sets the transfer failure callback.
func WithOnFailed(fn FailFunc) ManagerOption {
	return func(m *Manager) {
		m.onFailed = fn
	}
}

// Manager reassembles chunked transfers on the receiving side. It is
// safe for concurrent use; the delivery and failure callbacks are always
// invoked outside the manager's lock.
type Manager struct {
	mu        sync.Mutex
	transfers map[string]*transferState

	ttl       time.Duration
	maxActive int

	deliver    DeliverFunc
	onProgress ProgressFunc
	onComplete CompleteFunc
	onFailed   FailFunc

	logger  *slog.Logger
	metrics *metric.Metrics

	startOnce sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

// NewManager creates a Manager that hands completed payloads to deliver.
// Call Start to enable expiry sweeping.
func NewManager(deliver DeliverFunc, opts ...ManagerOption) *Manager {
	m := &Manager{
		transfers: make(map[string]*transferState),
		ttl:       DefaultTTL,
		maxActive: DefaultMaxActive,
		deliver:   deliver,
		logger:    slog.Default(),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background sweep that discards expired transfers.
// Subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.sweep(ctx)
	})
}

// Close stops the sweep goroutine. Pending transfers stay in place until
// AbortAll or expiry.
func (m *Manager) Close() error {
	select {
	case <-m.shutdown:
	default:
		close(m.shutdown)
	}

	// If Start was never called there is no sweep goroutine to wait for.
	m.startOnce.Do(func() { close(m.done) })

	select {
	case <-m.done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(errors.ErrTransportClosed, "transfer", "Close", "sweep shutdown timed out")
	}
}

// HandleHeader opens a new transfer. A header reusing an in-flight id
// replaces the previous attempt. When the in-flight cap is reached the
// oldest transfer is evicted to admit the new one.
func (m *Manager) HandleHeader(id, target, method string, totalSize, totalChunks int, checksum uint32) {
	if totalChunks < 1 || totalSize < 0 {
		m.logger.Warn("rejecting transfer header",
			"transfer_id", id,
			"total_size", totalSize,
			"total_chunks", totalChunks,
		)
		m.metrics.RecordTransferFailed(metric.TransferFailProtocol)
		m.fail(id, errors.ErrFrameInvalid)
		return
	}

	var evicted []string

	m.mu.Lock()
	if _, exists := m.transfers[id]; exists {
		// Restarted transfer, drop the stale partial state.
		delete(m.transfers, id)
	}
	for len(m.transfers) >= m.maxActive {
		oldest := m.oldestLocked()
		if oldest == "" {
			break
		}
		delete(m.transfers, oldest)
		evicted = append(evicted, oldest)
	}
	m.transfers[id] = &transferState{
		target:      target,
		method:      method,
		totalSize:   totalSize,
		totalChunks: totalChunks,
		checksum:    checksum,
		chunks:      make(map[int][]byte, totalChunks),
		startedAt:   time.Now(),
	}
	active := len(m.transfers)
	m.mu.Unlock()

	for _, old := range evicted {
		m.logger.Warn("evicted in-flight transfer", "transfer_id", old)
		m.metrics.RecordTransferFailed(metric.TransferFailEvicted)
		m.fail(old, errors.ErrTransferEvicted)
	}

	m.metrics.RecordTransfersActive(active)
	m.logger.Debug("transfer started",
		"transfer_id", id,
		"target", target,
		"method", method,
		"total_size", totalSize,
		"total_chunks", totalChunks,
	)
}

// HandleChunk stores one indexed chunk. Chunks for unknown transfers and
// out-of-range indexes are dropped. Duplicate indexes overwrite the
// previous bytes, so retransmission is idempotent. When the final chunk
// arrives the payload is verified and delivered.
func (m *Manager) HandleChunk(id string, index int, data []byte) {
	m.mu.Lock()
	state, ok := m.transfers[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("chunk for unknown transfer", "transfer_id", id, "index", index)
		m.metrics.RecordTransferFailed(metric.TransferFailProtocol)
		return
	}
	if index < 0 || index >= state.totalChunks {
		m.mu.Unlock()
		m.logger.Warn("chunk index out of range",
			"transfer_id", id,
			"index", index,
			"total_chunks", state.totalChunks,
		)
		m.metrics.RecordTransferFailed(metric.TransferFailProtocol)
		return
	}

	if _, dup := state.chunks[index]; !dup {
		state.received++
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	state.chunks[index] = buf

	received, total := state.received, state.totalChunks
	completed := state.complete()
	if completed {
		delete(m.transfers, id)
	}
	active := len(m.transfers)
	m.mu.Unlock()

	if m.onProgress != nil {
		m.onProgress(id, received, total)
	}
	if !completed {
		return
	}

	m.metrics.RecordTransfersActive(active)
	m.finish(id, state)
}

// HandleFooter validates the closing piece against the header. A footer
// whose fields disagree with the header discards the transfer. A footer
// for a transfer that is still missing chunks leaves it in place to wait
// for retransmission; footers for already-delivered transfers are
// ignored.
func (m *Manager) HandleFooter(id string, totalSize, totalChunks int, checksum uint32) {
	m.mu.Lock()
	state, ok := m.transfers[id]
	if !ok {
		// Normal case: delivery already happened on the last chunk.
		m.mu.Unlock()
		return
	}
	if totalSize != state.totalSize || totalChunks != state.totalChunks || checksum != state.checksum {
		delete(m.transfers, id)
		active := len(m.transfers)
		m.mu.Unlock()

		m.logger.Warn("transfer footer mismatch",
			"transfer_id", id,
			"header_size", state.totalSize,
			"footer_size", totalSize,
		)
		m.metrics.RecordTransferFailed(metric.TransferFailProtocol)
		m.metrics.RecordTransfersActive(active)
		m.fail(id, errors.ErrTransferMismatch)
		return
	}
	missing := state.totalChunks - state.received
	m.mu.Unlock()

	m.logger.Debug("footer before completion, awaiting chunks",
		"transfer_id", id,
		"missing_chunks", missing,
	)
}

// Abort discards an in-flight transfer. It reports whether the id was
// known.
func (m *Manager) Abort(id string) bool {
	m.mu.Lock()
	_, ok := m.transfers[id]
	if ok {
		delete(m.transfers, id)
	}
	active := len(m.transfers)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.metrics.RecordTransferFailed(metric.TransferFailAborted)
	m.metrics.RecordTransfersActive(active)
	m.fail(id, errors.ErrTransferAborted)
	return true
}

// AbortAll discards every in-flight transfer and returns how many were
// dropped.
func (m *Manager) AbortAll() int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.transfers))
	for id := range m.transfers {
		ids = append(ids, id)
	}
	m.transfers = make(map[string]*transferState)
	m.mu.Unlock()

	for _, id := range ids {
		m.metrics.RecordTransferFailed(metric.TransferFailAborted)
		m.fail(id, errors.ErrTransferAborted)
	}
	m.metrics.RecordTransfersActive(0)
	return len(ids)
}

// Active returns the number of in-flight transfers.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

// finish verifies and delivers a completed transfer. Called without the
// lock held; the state has already been removed from the map.
func (m *Manager) finish(id string, state *transferState) {
	data := state.assemble()

	if sum := crc32.ChecksumIEEE(data); sum != state.checksum {
		m.logger.Error("transfer checksum mismatch",
			"transfer_id", id,
			"expected", state.checksum,
			"actual", sum,
		)
		m.metrics.RecordTransferFailed(metric.TransferFailChecksum)
		m.fail(id, errors.ErrChecksumFailed)
		return
	}

	m.metrics.RecordTransferCompleted(len(data))
	m.logger.Debug("transfer completed",
		"transfer_id", id,
		"target", state.target,
		"method", state.method,
		"bytes", len(data),
	)
	if m.onComplete != nil {
		m.onComplete(id, state.target, state.method, len(data))
	}
	m.deliver(state.target, state.method, data)
}

func (m *Manager) fail(id string, err error) {
	if m.onFailed != nil {
		m.onFailed(id, err)
	}
}

// oldestLocked returns the id of the transfer with the earliest start
// time. Caller holds the lock.
func (m *Manager) oldestLocked() string {
	var oldest string
	var oldestAt time.Time
	for id, state := range m.transfers {
		if oldest == "" || state.startedAt.Before(oldestAt) {
			oldest = id
			oldestAt = state.startedAt
		}
	}
	return oldest
}

func (m *Manager) sweep(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Manager) removeExpired() {
	cutoff := time.Now().Add(-m.ttl)
	var expired []string

	m.mu.Lock()
	for id, state := range m.transfers {
		if state.startedAt.Before(cutoff) {
			delete(m.transfers, id)
			expired = append(expired, id)
		}
	}
	active := len(m.transfers)
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.Warn("discarding expired transfer", "transfer_id", id, "ttl", m.ttl)
		m.metrics.RecordTransferFailed(metric.TransferFailExpired)
		m.fail(id, errors.ErrTransferExpired)
	}
	if len(expired) > 0 {
		m.metrics.RecordTransfersActive(active)
	}
}

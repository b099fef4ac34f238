package transfer

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/gameframework/errors"
)

type delivery struct {
	target string
	method string
	data   []byte
}

type sink struct {
	mu         sync.Mutex
	deliveries []delivery
	failures   map[string]error
}

func newSink() *sink {
	return &sink{failures: make(map[string]error)}
}

func (s *sink) deliver(target, method string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{target: target, method: method, data: data})
}

func (s *sink) failed(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = err
}

func (s *sink) delivered() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

func (s *sink) failure(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[id]
}

func startTransfer(m *Manager, id string, payload []byte, chunkSize int) [][]byte {
	chunks := make([][]byte, 0)
	for start := 0; start < len(payload); start += chunkSize {
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	if len(chunks) == 0 {
		chunks = append(chunks, []byte{})
	}
	m.HandleHeader(id, "Textures", "onAsset", len(payload), len(chunks), crc32.ChecksumIEEE(payload))
	return chunks
}

func TestReassemblyOutOfOrder(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("abcdefghij") // 3 chunks of 4,4,2
	chunks := startTransfer(m, "t1", payload, 4)
	require.Len(t, chunks, 3)

	m.HandleChunk("t1", 2, chunks[2])
	m.HandleChunk("t1", 0, chunks[0])
	assert.Empty(t, s.delivered(), "incomplete transfer must not deliver")

	m.HandleChunk("t1", 1, chunks[1])
	m.HandleFooter("t1", len(payload), 3, crc32.ChecksumIEEE(payload))

	deliveries := s.delivered()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "Textures", deliveries[0].target)
	assert.Equal(t, "onAsset", deliveries[0].method)
	assert.True(t, bytes.Equal(payload, deliveries[0].data))
	assert.Equal(t, 0, m.Active())
}

func TestCorruptChunkNeverDelivered(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("the quick brown fox jumps over the lazy dog")
	chunks := startTransfer(m, "t1", payload, 8)

	for i, chunk := range chunks {
		if i == 1 {
			bad := append([]byte(nil), chunk...)
			bad[0] ^= 0xff // one-bit corruption
			m.HandleChunk("t1", i, bad)
			continue
		}
		m.HandleChunk("t1", i, chunk)
	}

	assert.Empty(t, s.delivered())
	assert.ErrorIs(t, s.failure("t1"), errors.ErrChecksumFailed)
	assert.Equal(t, 0, m.Active(), "failed transfer is discarded")
}

func TestDuplicateChunksAreIdempotent(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)

	m.HandleChunk("t1", 0, chunks[0])
	m.HandleChunk("t1", 0, chunks[0]) // retransmission
	assert.Empty(t, s.delivered())

	m.HandleChunk("t1", 1, chunks[1])

	deliveries := s.delivered()
	require.Len(t, deliveries, 1)
	assert.True(t, bytes.Equal(payload, deliveries[0].data))
}

func TestChunkForUnknownTransferDropped(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	assert.NotPanics(t, func() {
		m.HandleChunk("never-started", 0, []byte("data"))
	})
	assert.Empty(t, s.delivered())
	assert.Equal(t, 0, m.Active())
}

func TestChunkIndexOutOfRangeDropped(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	startTransfer(m, "t1", []byte("abcd"), 4)

	m.HandleChunk("t1", 5, []byte("x"))
	m.HandleChunk("t1", -1, []byte("x"))

	assert.Empty(t, s.delivered())
	assert.Equal(t, 1, m.Active(), "transfer stays open awaiting valid chunks")
}

func TestFooterMismatchDiscardsTransfer(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])

	m.HandleFooter("t1", 999, 3, 0xdeadbeef)

	assert.ErrorIs(t, s.failure("t1"), errors.ErrTransferMismatch)
	assert.Equal(t, 0, m.Active())

	// Late chunks after discard are ignored.
	m.HandleChunk("t1", 1, chunks[1])
	assert.Empty(t, s.delivered())
}

func TestFooterBeforeAllChunksKeepsWaiting(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])

	m.HandleFooter("t1", len(payload), 2, crc32.ChecksumIEEE(payload))
	assert.Equal(t, 1, m.Active())

	m.HandleChunk("t1", 1, chunks[1])
	require.Len(t, s.delivered(), 1)
}

func TestHeaderReplacesStalePartial(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])

	// Sender restarts the same transfer id from scratch.
	startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])
	m.HandleChunk("t1", 1, chunks[1])

	deliveries := s.delivered()
	require.Len(t, deliveries, 1)
	assert.True(t, bytes.Equal(payload, deliveries[0].data))
}

func TestInvalidHeaderRejected(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	m.HandleHeader("t1", "Textures", "onAsset", 10, 0, 0)

	assert.Equal(t, 0, m.Active())
	assert.ErrorIs(t, s.failure("t1"), errors.ErrFrameInvalid)
}

func TestMaxActiveEvictsOldest(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed), WithMaxActive(2))

	startTransfer(m, "first", []byte("aaaa"), 2)
	time.Sleep(time.Millisecond)
	startTransfer(m, "second", []byte("bbbb"), 2)
	time.Sleep(time.Millisecond)
	startTransfer(m, "third", []byte("cccc"), 2)

	assert.Equal(t, 2, m.Active())
	assert.ErrorIs(t, s.failure("first"), errors.ErrTransferEvicted)
	assert.NoError(t, s.failure("second"))
	assert.NoError(t, s.failure("third"))
}

func TestProgressCallback(t *testing.T) {
	s := newSink()
	var mu sync.Mutex
	var progress []string
	m := NewManager(s.deliver, WithProgress(func(id string, received, total int) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, fmt.Sprintf("%s:%d/%d", id, received, total))
	}))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])
	m.HandleChunk("t1", 1, chunks[1])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"t1:1/2", "t1:2/2"}, progress)
}

func TestCompletionCallback(t *testing.T) {
	s := newSink()
	var completed []string
	m := NewManager(s.deliver, WithOnComplete(func(id, target, method string, size int) {
		completed = append(completed, fmt.Sprintf("%s/%s/%s/%d", id, target, method, size))
	}))

	payload := []byte("abcdefgh")
	chunks := startTransfer(m, "t1", payload, 4)
	m.HandleChunk("t1", 0, chunks[0])
	m.HandleChunk("t1", 1, chunks[1])

	require.Len(t, s.delivered(), 1)
	assert.Equal(t, []string{"t1/Textures/onAsset/8"}, completed)
}

func TestAbort(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	startTransfer(m, "t1", []byte("abcd"), 2)

	assert.True(t, m.Abort("t1"))
	assert.False(t, m.Abort("t1"))
	assert.ErrorIs(t, s.failure("t1"), errors.ErrTransferAborted)
	assert.Equal(t, 0, m.Active())
}

func TestAbortAll(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	startTransfer(m, "t1", []byte("abcd"), 2)
	startTransfer(m, "t2", []byte("efgh"), 2)

	assert.Equal(t, 2, m.AbortAll())
	assert.Equal(t, 0, m.Active())
	assert.ErrorIs(t, s.failure("t1"), errors.ErrTransferAborted)
	assert.ErrorIs(t, s.failure("t2"), errors.ErrTransferAborted)
}

func TestExpiredTransferDiscarded(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed), WithTTL(10*time.Millisecond))

	payload := []byte("abcd")
	chunks := startTransfer(m, "t1", payload, 2)
	m.HandleChunk("t1", 0, chunks[0])

	time.Sleep(20 * time.Millisecond)
	m.removeExpired()

	assert.Equal(t, 0, m.Active())
	assert.ErrorIs(t, s.failure("t1"), errors.ErrTransferExpired)

	// The final chunk arriving after expiry must not deliver.
	m.HandleChunk("t1", 1, chunks[1])
	assert.Empty(t, s.delivered())
}

func TestChunkDataIsCopied(t *testing.T) {
	s := newSink()
	m := NewManager(s.deliver)

	payload := []byte("abcd")
	chunks := startTransfer(m, "t1", payload, 4)

	buf := append([]byte(nil), chunks[0]...)
	m.HandleChunk("t1", 0, buf)
	buf[0] = 'z' // caller reuses its buffer

	deliveries := s.delivered()
	require.Len(t, deliveries, 1)
	assert.True(t, bytes.Equal(payload, deliveries[0].data))
}

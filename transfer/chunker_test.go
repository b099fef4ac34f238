package transfer

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShape(t *testing.T) {
	c := NewChunker(4)
	payload := []byte("abcdefghij") // 10 bytes, chunk size 4 -> 3 chunks

	pieces := c.Split("Textures", "onAsset", payload)
	require.Len(t, pieces, 5) // header + 3 data + footer

	header := pieces[0]
	assert.Equal(t, PieceHeader, header.Kind)
	assert.NotEmpty(t, header.TransferID)
	assert.Equal(t, "Textures", header.Target)
	assert.Equal(t, "onAsset", header.Method)
	assert.Equal(t, 10, header.TotalSize)
	assert.Equal(t, 3, header.TotalChunks)
	assert.Equal(t, crc32.ChecksumIEEE(payload), header.Checksum)

	for i, piece := range pieces[1:4] {
		assert.Equal(t, PieceData, piece.Kind)
		assert.Equal(t, i, piece.Index)
		assert.Equal(t, header.TransferID, piece.TransferID)
	}
	assert.Equal(t, []byte("abcd"), pieces[1].Data)
	assert.Equal(t, []byte("efgh"), pieces[2].Data)
	assert.Equal(t, []byte("ij"), pieces[3].Data)

	footer := pieces[4]
	assert.Equal(t, PieceFooter, footer.Kind)
	assert.Equal(t, header.TransferID, footer.TransferID)
	assert.Equal(t, header.Checksum, footer.Checksum)
	assert.Equal(t, header.TotalChunks, footer.TotalChunks)
}

func TestSplitEmptyPayload(t *testing.T) {
	c := NewChunker(4)

	pieces := c.Split("Textures", "onAsset", nil)
	require.Len(t, pieces, 3)
	assert.Equal(t, 1, pieces[0].TotalChunks)
	assert.Empty(t, pieces[1].Data)
}

func TestSplitDistinctTransferIDs(t *testing.T) {
	c := NewChunker(DefaultChunkSize)

	a := c.Split("T", "m", []byte("one"))
	b := c.Split("T", "m", []byte("two"))
	assert.NotEqual(t, a[0].TransferID, b[0].TransferID)
}

func TestNewChunkerFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewChunker(0).ChunkSize())
	assert.Equal(t, DefaultChunkSize, NewChunker(-1).ChunkSize())
	assert.Equal(t, 128, NewChunker(128).ChunkSize())
}

// End to end: pieces produced by the Chunker fed through a Manager
// reproduce the original payload exactly.
func TestChunkerManagerRoundTrip(t *testing.T) {
	payload := make([]byte, 100*1024+37)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	s := newSink()
	m := NewManager(s.deliver, WithOnFailed(s.failed))

	c := NewChunker(DefaultChunkSize)
	for _, piece := range c.Split("AssetLoader", "onBundle", payload) {
		switch piece.Kind {
		case PieceHeader:
			m.HandleHeader(piece.TransferID, piece.Target, piece.Method,
				piece.TotalSize, piece.TotalChunks, piece.Checksum)
		case PieceData:
			m.HandleChunk(piece.TransferID, piece.Index, piece.Data)
		case PieceFooter:
			m.HandleFooter(piece.TransferID, piece.TotalSize, piece.TotalChunks, piece.Checksum)
		}
	}

	deliveries := s.delivered()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "AssetLoader", deliveries[0].target)
	assert.Equal(t, "onBundle", deliveries[0].method)
	assert.True(t, bytes.Equal(payload, deliveries[0].data))
	assert.Empty(t, s.failures)
}

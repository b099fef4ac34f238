package transfer

import (
	"hash/crc32"

	"github.com/google/uuid"
)

// DefaultChunkSize is the maximum data payload per piece.
const DefaultChunkSize = 64 * 1024

// PieceKind identifies the role of a piece within a transfer.
type PieceKind int

const (
	// PieceHeader announces a new transfer and its expected shape.
	PieceHeader PieceKind = iota
	// PieceData carries one indexed chunk of the payload.
	PieceData
	// PieceFooter closes a transfer, restating the header fields.
	PieceFooter
)

// String returns the string representation of PieceKind
func (k PieceKind) String() string {
	switch k {
	case PieceHeader:
		return "header"
	case PieceData:
		return "data"
	case PieceFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// Piece is one unit of a chunked transfer as it crosses the transport.
// Header and footer pieces carry the transfer metadata; data pieces carry
// Index and Data.
type Piece struct {
	Kind        PieceKind
	TransferID  string
	Target      string
	Method      string
	Index       int
	Data        []byte
	TotalSize   int
	TotalChunks int
	Checksum    uint32
}

// Chunker splits payloads into transfer pieces.
type Chunker struct {
	chunkSize int
}

// NewChunker creates a Chunker with the given maximum chunk size. Sizes
// below one byte fall back to DefaultChunkSize.
func NewChunker(chunkSize int) *Chunker {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{chunkSize: chunkSize}
}

// ChunkSize returns the configured maximum chunk size.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Split breaks data into a header piece, one data piece per chunk and a
// footer piece, all sharing a fresh transfer id. The checksum covers the
// whole payload, not individual chunks. Data is not copied; pieces alias
// subslices of the input.
func (c *Chunker) Split(target, method string, data []byte) []Piece {
	id := uuid.NewString()
	checksum := crc32.ChecksumIEEE(data)

	totalChunks := (len(data) + c.chunkSize - 1) / c.chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}

	pieces := make([]Piece, 0, totalChunks+2)

	meta := Piece{
		Kind:        PieceHeader,
		TransferID:  id,
		Target:      target,
		Method:      method,
		TotalSize:   len(data),
		TotalChunks: totalChunks,
		Checksum:    checksum,
	}
	pieces = append(pieces, meta)

	for i := 0; i < totalChunks; i++ {
		start := i * c.chunkSize
		end := start + c.chunkSize
		if end > len(data) {
			end = len(data)
		}
		pieces = append(pieces, Piece{
			Kind:       PieceData,
			TransferID: id,
			Target:     target,
			Method:     method,
			Index:      i,
			Data:       data[start:end],
		})
	}

	meta.Kind = PieceFooter
	pieces = append(pieces, meta)

	return pieces
}

package transport

import (
	"encoding/json"

	"github.com/xraph/gameframework/errors"
)

// Frame kinds carried on the wire.
const (
	KindText        = "text"
	KindBinary      = "binary"
	KindChunkHeader = "chunk-header"
	KindChunkData   = "chunk-data"
	KindChunkFooter = "chunk-footer"
)

// TransferInfo carries the chunked-transfer fields of a frame. It is
// present only on chunk-header, chunk-data and chunk-footer frames.
type TransferInfo struct {
	ID          string `json:"id"`
	Index       int    `json:"index,omitempty"`
	TotalSize   int    `json:"totalSize,omitempty"`
	TotalChunks int    `json:"totalChunks,omitempty"`
	Checksum    uint32 `json:"checksum,omitempty"`
}

// Frame is the wire envelope for every message crossing the bridge.
// Target and Method address the receiving handler; exactly one of Text
// or Data carries the payload depending on Kind.
type Frame struct {
	Kind     string        `json:"kind"`
	Target   string        `json:"target"`
	Method   string        `json:"method"`
	Text     string        `json:"text,omitempty"`
	Data     []byte        `json:"data,omitempty"`
	Transfer *TransferInfo `json:"transfer,omitempty"`
}

// Validate checks structural invariants of the frame. It does not
// inspect payload contents.
func (f *Frame) Validate() error {
	switch f.Kind {
	case KindText, KindBinary:
		if f.Target == "" || f.Method == "" {
			return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "missing target or method")
		}
	case KindChunkHeader:
		if f.Target == "" || f.Method == "" {
			return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "missing target or method")
		}
		if f.Transfer == nil || f.Transfer.ID == "" {
			return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "missing transfer info")
		}
	case KindChunkData, KindChunkFooter:
		if f.Transfer == nil || f.Transfer.ID == "" {
			return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "missing transfer info")
		}
	case "":
		return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "missing kind")
	default:
		return errors.WrapInvalid(errors.ErrFrameInvalid, "transport", "Validate", "unknown kind "+f.Kind)
	}
	return nil
}

// Encode serializes the frame to its JSON wire form.
func (f *Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.WrapInvalid(err, "transport", "Encode", "marshal frame")
	}
	return data, nil
}

// Decode parses a JSON wire frame and validates it.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, errors.WrapInvalid(err, "transport", "Decode", "unmarshal frame")
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

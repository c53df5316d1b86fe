// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dsiroky/rewofs/internal/codec"
)

// Frame is the envelope every wire message travels in: a correlation
// ID, a payload kind tag, and the CBOR-encoded payload.
type Frame struct {
	ID      uint64
	Kind    Kind
	Payload codec.RawMessage
}

// Encode builds a Frame for the given correlation id and typed
// payload.
func Encode(id uint64, kind Kind, payload any) (Frame, error) {
	raw, err := codec.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: encoding %s payload: %w", kind, err)
	}
	return Frame{ID: id, Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the Frame's payload into out. The caller is
// expected to already know the payload's Kind matches the type of
// out.
func (f Frame) Decode(out any) error {
	if err := codec.Unmarshal(f.Payload, out); err != nil {
		return fmt.Errorf("wire: decoding %s payload: %w", f.Kind, err)
	}
	return nil
}

// wireFrame is the CBOR-serializable form of Frame (Kind as a plain
// integer, which is all CBOR knows how to tag).
type wireFrame struct {
	ID      uint64           `cbor:"id"`
	Kind    uint8            `cbor:"kind"`
	Payload codec.RawMessage `cbor:"payload"`
}

func marshalFrame(f Frame) ([]byte, error) {
	return codec.Marshal(wireFrame{ID: f.ID, Kind: uint8(f.Kind), Payload: f.Payload})
}

func unmarshalFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := codec.Unmarshal(data, &w); err != nil {
		return Frame{}, err
	}
	return Frame{ID: w.ID, Kind: Kind(w.Kind), Payload: w.Payload}, nil
}

// maxFrameSize bounds a single frame so a corrupt length prefix (or a
// hostile peer) cannot force an unbounded allocation.
const maxFrameSize = 256 * 1024 * 1024

// flagCompressed marks a frame body as lz4-block-compressed.
const flagCompressed byte = 1 << 0

// WriteFrame serializes f and writes it to w as one length-prefixed
// message: a 4-byte big-endian length, a 1-byte flags field, then the
// body. If compress is true the CBOR-encoded frame is lz4-compressed
// as a single block; frames that do not shrink are sent uncompressed.
func WriteFrame(w io.Writer, f Frame, compress bool) error {
	encoded, err := marshalFrame(f)
	if err != nil {
		return fmt.Errorf("wire: marshaling frame: %w", err)
	}

	flags := byte(0)
	body := encoded
	if compress {
		if compressed, ok := compressBlock(encoded); ok {
			flags |= flagCompressed
			body = appendUint32(compressed, uint32(len(encoded)))
		}
	}

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(body)))
	header[4] = flags

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wire: writing frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed message from r and decodes it.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length > maxFrameSize {
		return Frame{}, fmt.Errorf("wire: frame size %d exceeds maximum %d", length, maxFrameSize)
	}
	flags := header[4]

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("wire: reading frame body: %w", err)
	}

	encoded := body
	if flags&flagCompressed != 0 {
		uncompressedSize, compressed, ok := splitUint32Prefix(body)
		if !ok {
			return Frame{}, fmt.Errorf("wire: truncated compressed frame")
		}
		decoded, err := decompressBlock(compressed, int(uncompressedSize))
		if err != nil {
			return Frame{}, fmt.Errorf("wire: decompressing frame: %w", err)
		}
		encoded = decoded
	}

	return unmarshalFrame(encoded)
}

func appendUint32(data []byte, v uint32) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out[0:4], v)
	copy(out[4:], data)
	return out
}

func splitUint32Prefix(data []byte) (uint32, []byte, bool) {
	if len(data) < 4 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(data[0:4]), data[4:], true
}

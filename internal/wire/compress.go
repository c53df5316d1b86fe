// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// compressBlock lz4-compresses data as a single block. ok is false
// when the result would not be smaller than the input (an
// incompressible frame, e.g. one already carrying compressed file
// content) — callers should fall back to sending the frame
// uncompressed.
func compressBlock(data []byte) (compressed []byte, ok bool) {
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)

	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil || written == 0 || written >= len(data) {
		return nil, false
	}
	return dst[:written], true
}

// decompressBlock reverses compressBlock. uncompressedSize must match
// the original length exactly, matching the stored length prefix.
func decompressBlock(compressed []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, uncompressedSize)
	}
	return dst, nil
}

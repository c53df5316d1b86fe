// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import "sort"

// block is one cached byte range of a file, [start, start+len(data)).
type block struct {
	start int64
	data  []byte
}

// Content is the client's file-content cache: per-path lists of
// non-overlapping, non-touching byte ranges. Reads only hit when a
// single block fully covers the request; writes coalesce adjacent and
// overlapping blocks so the list stays flattened.
type Content struct {
	blocks map[string][]block
}

// NewContent creates an empty content cache.
func NewContent() *Content {
	return &Content{blocks: make(map[string][]block)}
}

// Reset forgets every cached block.
func (c *Content) Reset() {
	c.blocks = make(map[string][]block)
}

// Read returns the cached bytes for [start, start+size) if some
// single block fully covers that range. ok is false on any partial or
// missing coverage, even if the bytes are scattered across several
// blocks.
func (c *Content) Read(path string, start int64, size int) (data []byte, ok bool) {
	end := start + int64(size)
	for _, b := range c.blocks[path] {
		bEnd := b.start + int64(len(b.data))
		if b.start <= start && end <= bEnd {
			off := start - b.start
			out := make([]byte, size)
			copy(out, b.data[off:off+int64(size)])
			return out, true
		}
	}
	return nil, false
}

// Write records content at the given offset. If an existing block
// already fully contains the range, it is overwritten in place.
// Otherwise the new bytes are folded into the path's block list by
// mergeWrite, which always lets the newly written bytes win in any
// overlap: sort order among blocks says nothing about which one was
// written more recently.
func (c *Content) Write(path string, start int64, data []byte) {
	end := start + int64(len(data))
	blocks := c.blocks[path]

	for i := range blocks {
		b := &blocks[i]
		bEnd := b.start + int64(len(b.data))
		if b.start <= start && end <= bEnd {
			copy(b.data[start-b.start:], data)
			return
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	c.blocks[path] = mergeWrite(blocks, block{start: start, data: stored})
}

// DeleteFile forgets every block cached for path.
func (c *Content) DeleteFile(path string) {
	delete(c.blocks, path)
}

// mergeWrite folds newBlock into old, an already-flattened (mutually
// non-overlapping, non-touching) block list. Every old block that
// touches or overlaps newBlock is absorbed into the result: the
// absorbed span is filled with the old blocks' bytes first, then
// newBlock's own bytes are copied on top at its own offset, so a
// write can never be shadowed by older data regardless of which side
// of it that data sits on.
func mergeWrite(old []block, newBlock block) []block {
	start := newBlock.start
	end := newBlock.start + int64(len(newBlock.data))

	var absorbed []block
	kept := old[:0:0]
	for _, b := range old {
		bEnd := b.start + int64(len(b.data))
		if b.start <= end && bEnd >= start {
			absorbed = append(absorbed, b)
			if b.start < start {
				start = b.start
			}
			if bEnd > end {
				end = bEnd
			}
			continue
		}
		kept = append(kept, b)
	}

	merged := block{start: start, data: make([]byte, end-start)}
	for _, b := range absorbed {
		copy(merged.data[b.start-start:], b.data)
	}
	copy(merged.data[newBlock.start-start:], newBlock.data)

	kept = append(kept, merged)
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"sync"

	"github.com/dsiroky/rewofs/internal/rerr"
)

// fileEntry is one open-file table row. mu serializes concurrent I/O
// on the same handle (the client may pipeline several reads/writes
// against one descriptor); it is held during the syscall and released
// before the table's own map lock is touched again.
type fileEntry struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenFileTable maps client-chosen handles to native file descriptors.
// One mutex guards the map itself; each entry's own mutex guards the
// descriptor during a read, write, or close.
type OpenFileTable struct {
	mu    sync.Mutex
	files map[uint64]*fileEntry
}

// NewOpenFileTable creates an empty table.
func NewOpenFileTable() *OpenFileTable {
	return &OpenFileTable{files: make(map[uint64]*fileEntry)}
}

// Insert adds handle -> (f, path). Returns KindInvalid if handle is
// already in use; a duplicate handle is a caller bug, not a condition
// that should ever occur from ordinary client behaviour.
func (t *OpenFileTable) Insert(handle uint64, f *os.File, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.files[handle]; exists {
		return rerr.New(rerr.KindInvalid, path)
	}
	t.files[handle] = &fileEntry{file: f, path: path}
	return nil
}

// withEntry looks up handle, locks its per-entry mutex for the
// duration of fn, and releases the table's map lock before fn runs so
// unrelated handles are never blocked by one slow I/O.
func (t *OpenFileTable) withEntry(handle uint64, fn func(*fileEntry) error) error {
	t.mu.Lock()
	entry, ok := t.files[handle]
	t.mu.Unlock()
	if !ok {
		return rerr.New(rerr.KindBadDescriptor, "")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry)
}

// Remove deletes handle from the table. Safe to call even if a
// withEntry call against the same handle is in flight: it only drops
// the map entry, the *os.File is closed by the caller beforehand.
func (t *OpenFileTable) Remove(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, handle)
}

// PathOf returns the path recorded for handle, or "" if unknown.
func (t *OpenFileTable) PathOf(handle uint64) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.files[handle]; ok {
		return entry.path
	}
	return ""
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs defines the filesystem-operation contract the kernel
// bridge drives, and the two implementations of it: RemoteVfs (a
// stateless one-round-trip-per-call client) and CachedVfs (a
// write-through cache in front of a RemoteVfs).
package vfs

import "github.com/dsiroky/rewofs/internal/wire"

// Attr is the attribute record shared by every operation that reports
// or sets file metadata.
type Attr = wire.Attr

// Timespec is a POSIX timestamp. Omit marks "leave this timestamp
// unchanged", the sentinel Utimens needs since a zero Timespec is a
// valid timestamp (the epoch).
type Timespec struct {
	Sec  int64
	Nsec int64
	Omit bool
}

// FileHandle is a client-chosen identifier for an open file. The
// client mints it; the server records it verbatim in its open-file
// table, so it never collides with another client's handles.
type FileHandle uint64

// RenameFlags selects which rename semantics a Rename call wants.
type RenameFlags uint8

const (
	RenameNone      RenameFlags = RenameFlags(wire.RenameNone)
	RenameNoReplace RenameFlags = RenameFlags(wire.RenameNoReplace)
	RenameExchange  RenameFlags = RenameFlags(wire.RenameExchange)
)

// DirEntry is one entry reported by Readdir.
type DirEntry struct {
	Name string
	Attr Attr
}

// Vfs is the operation set both RemoteVfs and CachedVfs implement.
// The kernel bridge depends only on this interface, never on a
// concrete type.
type Vfs interface {
	Getattr(path string) (Attr, error)
	Readdir(path string, sink func(entry DirEntry)) error
	Readlink(path string) (string, error)
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Unlink(path string) error
	Symlink(target, link string) error
	Rename(from, to string, flags RenameFlags) error
	Chmod(path string, mode uint32) error
	Utimens(path string, atime, mtime Timespec) error
	Truncate(path string, length int64) error
	Create(path string, flags uint32, mode uint32) (FileHandle, error)
	Open(path string, flags uint32) (FileHandle, error)
	Close(fh FileHandle) error
	Read(fh FileHandle, out []byte, offset int64) (int, error)
	Write(fh FileHandle, in []byte, offset int64) (int, error)
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"path"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/dsiroky/rewofs/internal/cache"
	"github.com/dsiroky/rewofs/internal/rerr"
)

// openFile is a CachedVfs-local handle's bookkeeping. sub is nil until
// the file has actually been opened on the remote side (lazy
// read-only opens).
type openFile struct {
	path     string
	sub      *FileHandle
	writable bool
}

// CachedVfs serves getattr/readdir from the local tree, delegates
// readlink to the subordinate Vfs unconditionally, and write-throughs
// every mutation: the remote call runs first, and the local cache is
// only updated after it is acknowledged.
type CachedVfs struct {
	sub   Vfs
	cache *cache.Cache

	nextHandle atomic.Uint64

	filesMu sync.Mutex
	files   map[FileHandle]*openFile
}

// NewCachedVfs wraps sub (typically a RemoteVfs) with a write-through
// cache. The returned Cache is exposed so a BackgroundLoader and a
// notification handler can invalidate and repopulate it.
func NewCachedVfs(sub Vfs) *CachedVfs {
	return &CachedVfs{
		sub:   sub,
		cache: cache.New(),
		files: make(map[FileHandle]*openFile),
	}
}

// Cache returns the underlying tree+content cache, for the background
// loader and the change-notification handler to reset/repopulate.
func (c *CachedVfs) Cache() *cache.Cache { return c.cache }

func (c *CachedVfs) refreshAttr(path string) {
	attr, err := c.sub.Getattr(path)
	if err != nil {
		return
	}
	c.cache.Lock()
	if node, nerr := c.cache.Tree().GetNode(path); nerr == nil {
		node.Attr = attr
	}
	c.cache.Unlock()
}

func (c *CachedVfs) Getattr(p string) (Attr, error) {
	c.cache.Lock()
	defer c.cache.Unlock()
	node, err := c.cache.Tree().GetNode(p)
	if err != nil {
		return Attr{}, err
	}
	return node.Attr, nil
}

func (c *CachedVfs) Readdir(p string, sink func(DirEntry)) error {
	c.cache.Lock()
	defer c.cache.Unlock()
	node, err := c.cache.Tree().GetNode(p)
	if err != nil {
		return err
	}
	for name, child := range node.Children {
		sink(DirEntry{Name: name, Attr: child.Attr})
	}
	return nil
}

func (c *CachedVfs) Readlink(p string) (string, error) {
	return c.sub.Readlink(p)
}

func (c *CachedVfs) Mkdir(p string, mode uint32) error {
	if err := c.sub.Mkdir(p, mode); err != nil {
		return err
	}
	c.cache.Lock()
	_, err := c.cache.Tree().MakeNode(p)
	c.cache.Unlock()
	if err != nil {
		return err
	}
	c.refreshAttr(p)
	c.refreshAttr(path.Dir(p))
	return nil
}

func (c *CachedVfs) Rmdir(p string) error {
	if err := c.sub.Rmdir(p); err != nil {
		return err
	}
	c.cache.Lock()
	err := c.cache.Tree().RemoveSingle(p)
	c.cache.Unlock()
	if err != nil {
		return err
	}
	c.refreshAttr(path.Dir(p))
	return nil
}

func (c *CachedVfs) Unlink(p string) error {
	if err := c.sub.Unlink(p); err != nil {
		return err
	}
	c.cache.Lock()
	err := c.cache.Tree().RemoveSingle(p)
	c.cache.Content().DeleteFile(p)
	c.cache.Unlock()
	if err != nil {
		return err
	}
	c.refreshAttr(path.Dir(p))
	return nil
}

func (c *CachedVfs) Symlink(target, link string) error {
	if err := c.sub.Symlink(target, link); err != nil {
		return err
	}
	c.cache.Lock()
	_, err := c.cache.Tree().MakeNode(link)
	c.cache.Unlock()
	if err != nil {
		return err
	}
	c.refreshAttr(link)
	c.refreshAttr(path.Dir(link))
	return nil
}

// Rename drops cached content for both sides regardless of which way
// the move went, a conservative invalidation that never leaves stale
// content behind.
func (c *CachedVfs) Rename(from, to string, flags RenameFlags) error {
	if err := c.sub.Rename(from, to, flags); err != nil {
		return err
	}
	c.cache.Lock()
	defer c.cache.Unlock()

	var err error
	if flags == RenameExchange {
		err = c.cache.Tree().Exchange(from, to)
	} else {
		err = c.cache.Tree().Rename(from, to)
	}
	c.cache.Content().DeleteFile(from)
	c.cache.Content().DeleteFile(to)
	return err
}

func (c *CachedVfs) Chmod(p string, mode uint32) error {
	if err := c.sub.Chmod(p, mode); err != nil {
		return err
	}
	c.refreshAttr(p)
	return nil
}

// Utimens skips the remote call entirely when the caller wants to
// leave mtime alone: cache coherence only cares about mtime, so an
// atime-only touch is not worth a round trip.
func (c *CachedVfs) Utimens(p string, atime, mtime Timespec) error {
	if mtime.Omit {
		return nil
	}
	if err := c.sub.Utimens(p, atime, mtime); err != nil {
		return err
	}
	c.refreshAttr(p)
	return nil
}

func (c *CachedVfs) Truncate(p string, length int64) error {
	if err := c.sub.Truncate(p, length); err != nil {
		return err
	}
	c.cache.Lock()
	c.cache.Content().DeleteFile(p)
	c.cache.Unlock()
	c.refreshAttr(p)
	return nil
}

func (c *CachedVfs) Create(p string, flags uint32, mode uint32) (FileHandle, error) {
	subFH, err := c.sub.Create(p, flags, mode)
	if err != nil {
		return 0, err
	}

	c.cache.Lock()
	_, err = c.cache.Tree().MakeNode(p)
	c.cache.Unlock()
	if err != nil {
		return 0, err
	}
	c.refreshAttr(p)
	c.refreshAttr(path.Dir(p))

	fh := FileHandle(c.nextHandle.Add(1))
	c.filesMu.Lock()
	c.files[fh] = &openFile{path: p, sub: &subFH, writable: true}
	c.filesMu.Unlock()
	return fh, nil
}

func writeCapable(flags uint32) bool {
	return flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND) != 0
}

func (c *CachedVfs) Open(p string, flags uint32) (FileHandle, error) {
	writable := writeCapable(flags)

	entry := &openFile{path: p, writable: writable}
	if writable {
		subFH, err := c.sub.Open(p, flags)
		if err != nil {
			return 0, err
		}
		entry.sub = &subFH
	}

	fh := FileHandle(c.nextHandle.Add(1))
	c.filesMu.Lock()
	c.files[fh] = entry
	c.filesMu.Unlock()
	return fh, nil
}

func (c *CachedVfs) lookupOpen(fh FileHandle) (*openFile, error) {
	c.filesMu.Lock()
	defer c.filesMu.Unlock()
	entry, ok := c.files[fh]
	if !ok {
		return nil, rerr.New(rerr.KindBadDescriptor, "")
	}
	return entry, nil
}

func (c *CachedVfs) Close(fh FileHandle) error {
	c.filesMu.Lock()
	entry, ok := c.files[fh]
	if ok {
		delete(c.files, fh)
	}
	c.filesMu.Unlock()
	if !ok {
		return rerr.New(rerr.KindBadDescriptor, "")
	}
	if entry.sub != nil {
		return c.sub.Close(*entry.sub)
	}
	return nil
}

// ensureRemoteOpen lazily opens the remote file for a read-only
// handle the first time a cache miss forces an actual read.
func (c *CachedVfs) ensureRemoteOpen(entry *openFile) (FileHandle, error) {
	c.filesMu.Lock()
	if entry.sub != nil {
		fh := *entry.sub
		c.filesMu.Unlock()
		return fh, nil
	}
	c.filesMu.Unlock()

	subFH, err := c.sub.Open(entry.path, syscall.O_RDONLY)
	if err != nil {
		return 0, err
	}

	c.filesMu.Lock()
	if entry.sub == nil {
		entry.sub = &subFH
	} else {
		subFH = *entry.sub
	}
	c.filesMu.Unlock()
	return subFH, nil
}

func (c *CachedVfs) Read(fh FileHandle, out []byte, offset int64) (int, error) {
	entry, err := c.lookupOpen(fh)
	if err != nil {
		return 0, err
	}

	c.cache.Lock()
	if data, ok := c.cache.Content().Read(entry.path, offset, len(out)); ok {
		copy(out, data)
		c.cache.Unlock()
		return len(data), nil
	}
	c.cache.Unlock()

	subFH, err := c.ensureRemoteOpen(entry)
	if err != nil {
		return 0, err
	}

	n, err := c.sub.Read(subFH, out, offset)
	if err != nil {
		return n, err
	}

	c.cache.Lock()
	c.cache.Content().Write(entry.path, offset, out[:n])
	c.cache.Unlock()
	return n, nil
}

func (c *CachedVfs) Write(fh FileHandle, in []byte, offset int64) (int, error) {
	entry, err := c.lookupOpen(fh)
	if err != nil {
		return 0, err
	}
	if entry.sub == nil || !entry.writable {
		return 0, rerr.New(rerr.KindBadDescriptor, entry.path)
	}

	n, err := c.sub.Write(*entry.sub, in, offset)
	if err != nil {
		return n, err
	}

	c.refreshAttr(entry.path)

	c.cache.Lock()
	c.cache.Content().Write(entry.path, offset, in[:n])
	c.cache.Unlock()
	return n, nil
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package kbridge

import (
	"bytes"
	"sync"
	"syscall"
	"time"

	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/vfs"
)

// fakeVfs is a minimal in-memory vfs.Vfs used to exercise the kernel
// bridge without a real rewofs server on the other end. Paths are
// "/"-rooted, matching what Node.path produces.
type fakeVfs struct {
	mu       sync.Mutex
	nodes    map[string]*fakeNode
	nextFh   uint64
	handleOf map[vfs.FileHandle]string
}

type fakeNode struct {
	mode    uint32
	data    []byte
	target  string // symlink target
	mtime   time.Time
}

func newFakeVfs() *fakeVfs {
	return &fakeVfs{
		nodes:    map[string]*fakeNode{"/": {mode: syscall.S_IFDIR | 0o755}},
		handleOf: map[vfs.FileHandle]string{},
	}
}

func (f *fakeVfs) lookup(path string) (*fakeNode, error) {
	n, ok := f.nodes[path]
	if !ok {
		return nil, rerr.New(rerr.KindNotFound, path)
	}
	return n, nil
}

func (f *fakeVfs) Getattr(path string) (vfs.Attr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return vfs.Attr{}, err
	}
	return vfs.Attr{Mode: n.mode, Nlink: 1, Size: int64(len(n.data))}, nil
}

func (f *fakeVfs) Readdir(path string, sink func(vfs.DirEntry)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(path); err != nil {
		return err
	}
	prefix := path
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	for p, n := range f.nodes {
		if p == path || p == "/" {
			continue
		}
		rest := p
		if prefix != "/" {
			if len(p) <= len(prefix) || p[:len(prefix)] != prefix {
				continue
			}
			rest = p[len(prefix):]
		} else {
			rest = p[1:]
		}
		if rest == "" {
			continue
		}
		isChild := true
		for _, c := range rest {
			if c == '/' {
				isChild = false
				break
			}
		}
		if !isChild {
			continue
		}
		sink(vfs.DirEntry{Name: rest, Attr: vfs.Attr{Mode: n.mode, Size: int64(len(n.data))}})
	}
	return nil
}

func (f *fakeVfs) Readlink(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return "", err
	}
	return n.target, nil
}

func (f *fakeVfs) Mkdir(path string, mode uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.nodes[path]; exists {
		return rerr.New(rerr.KindExists, path)
	}
	f.nodes[path] = &fakeNode{mode: syscall.S_IFDIR | mode}
	return nil
}

func (f *fakeVfs) Rmdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(path); err != nil {
		return err
	}
	delete(f.nodes, path)
	return nil
}

func (f *fakeVfs) Unlink(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(path); err != nil {
		return err
	}
	delete(f.nodes, path)
	return nil
}

func (f *fakeVfs) Symlink(target, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.nodes[link]; exists {
		return rerr.New(rerr.KindExists, link)
	}
	f.nodes[link] = &fakeNode{mode: syscall.S_IFLNK | 0o777, target: target}
	return nil
}

func (f *fakeVfs) Rename(from, to string, flags vfs.RenameFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(from)
	if err != nil {
		return err
	}
	if flags == vfs.RenameNoReplace {
		if _, exists := f.nodes[to]; exists {
			return rerr.New(rerr.KindExists, to)
		}
	}
	if flags == vfs.RenameExchange {
		other, exists := f.nodes[to]
		if !exists {
			return rerr.New(rerr.KindNotFound, to)
		}
		f.nodes[from], f.nodes[to] = other, n
		return nil
	}
	f.nodes[to] = n
	delete(f.nodes, from)
	return nil
}

func (f *fakeVfs) Chmod(path string, mode uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return err
	}
	n.mode = (n.mode &^ 0o7777) | (mode & 0o7777)
	return nil
}

func (f *fakeVfs) Utimens(path string, atime, mtime vfs.Timespec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return err
	}
	if !mtime.Omit {
		n.mtime = time.Unix(mtime.Sec, mtime.Nsec)
	}
	return nil
}

func (f *fakeVfs) Truncate(path string, length int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return err
	}
	if int64(len(n.data)) >= length {
		n.data = n.data[:length]
		return nil
	}
	n.data = append(n.data, make([]byte, length-int64(len(n.data)))...)
	return nil
}

func (f *fakeVfs) Create(path string, flags uint32, mode uint32) (vfs.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.nodes[path]; !exists {
		f.nodes[path] = &fakeNode{mode: syscall.S_IFREG | mode}
	}
	f.nextFh++
	fh := vfs.FileHandle(f.nextFh)
	f.handleOf[fh] = path
	return fh, nil
}

func (f *fakeVfs) Open(path string, flags uint32) (vfs.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(path); err != nil {
		return 0, err
	}
	f.nextFh++
	fh := vfs.FileHandle(f.nextFh)
	f.handleOf[fh] = path
	return fh, nil
}

func (f *fakeVfs) Close(fh vfs.FileHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handleOf[fh]; !ok {
		return rerr.New(rerr.KindBadDescriptor, "")
	}
	delete(f.handleOf, fh)
	return nil
}

func (f *fakeVfs) Read(fh vfs.FileHandle, out []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.handleOf[fh]
	if !ok {
		return 0, rerr.New(rerr.KindBadDescriptor, "")
	}
	n := f.nodes[path]
	if offset >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(out, n.data[offset:]), nil
}

func (f *fakeVfs) Write(fh vfs.FileHandle, in []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.handleOf[fh]
	if !ok {
		return 0, rerr.New(rerr.KindBadDescriptor, "")
	}
	n := f.nodes[path]
	end := offset + int64(len(in))
	if end > int64(len(n.data)) {
		buf := bytes.NewBuffer(n.data)
		buf.Write(make([]byte, end-int64(len(n.data))))
		n.data = buf.Bytes()
	}
	return copy(n.data[offset:end], in), nil
}

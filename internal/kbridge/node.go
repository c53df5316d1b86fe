// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package kbridge is the kernel bridge: a go-fuse/v2 mount whose
// every inode is the same Node type, forwarding straight to a
// single injected vfs.Vfs. There is no per-operation global state;
// the capability is set once at construction and carried by value
// into every child Node. The Inode-embedding/NodeXxxer idiom follows
// the FUSE mounts elsewhere in this codebase; the single-capability-
// object, uniform-node-type shape itself follows go-fuse's own
// loopback filesystem pattern, since this mount is a passthrough of
// an external filesystem rather than one backed by local state.
package kbridge

import (
	"context"
	"log/slog"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dsiroky/rewofs/internal/vfs"
)

// Node is every inode in the mount: the root and every file,
// directory, and symlink beneath it. Its identity is its position in
// the kernel's inode tree, recovered via Path at call time rather
// than stored, so a Node never goes stale when its parent is renamed.
type Node struct {
	fs.Inode
	vfs    vfs.Vfs
	logger *slog.Logger
}

var (
	_ fs.InodeEmbedder  = (*Node)(nil)
	_ fs.NodeLookuper   = (*Node)(nil)
	_ fs.NodeReaddirer  = (*Node)(nil)
	_ fs.NodeGetattrer  = (*Node)(nil)
	_ fs.NodeSetattrer  = (*Node)(nil)
	_ fs.NodeOpener     = (*Node)(nil)
	_ fs.NodeCreater    = (*Node)(nil)
	_ fs.NodeReader     = (*Node)(nil)
	_ fs.NodeWriter     = (*Node)(nil)
	_ fs.NodeReleaser   = (*Node)(nil)
	_ fs.NodeMkdirer    = (*Node)(nil)
	_ fs.NodeRmdirer    = (*Node)(nil)
	_ fs.NodeUnlinker   = (*Node)(nil)
	_ fs.NodeSymlinker  = (*Node)(nil)
	_ fs.NodeReadlinker = (*Node)(nil)
	_ fs.NodeRenamer    = (*Node)(nil)
)

// path recovers this node's "/"-rooted path from the kernel's inode
// tree. The root node's own Path is "", which must map to "/" rather
// than "" to satisfy the Vfs contract.
func (n *Node) path() string {
	p := n.Path(nil)
	if p == "" {
		return "/"
	}
	return "/" + p
}

func (n *Node) child(name string) string {
	return path.Join(n.path(), name)
}

func (n *Node) newChild(ctx context.Context, mode uint32) *fs.Inode {
	return n.NewInode(ctx, &Node{vfs: n.vfs, logger: n.logger}, fs.StableAttr{Mode: mode & syscall.S_IFMT})
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attr, err := n.vfs.Getattr(n.child(name))
	if err != nil {
		return nil, errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return n.newChild(ctx, attr.Mode), 0
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	err := n.vfs.Readdir(n.path(), func(e vfs.DirEntry) {
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: e.Attr.Mode})
	})
	if err != nil {
		return nil, errnoOf(err)
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.vfs.Getattr(n.path())
	if err != nil {
		return errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return 0
}

func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.path()

	if mode, ok := in.GetMode(); ok {
		if err := n.vfs.Chmod(p, mode); err != nil {
			return errnoOf(err)
		}
	}
	if size, ok := in.GetSize(); ok {
		if err := n.vfs.Truncate(p, int64(size)); err != nil {
			return errnoOf(err)
		}
	}

	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if aok || mok {
		at := vfs.Timespec{Omit: !aok}
		if aok {
			at = vfs.Timespec{Sec: atime.Unix(), Nsec: int64(atime.Nanosecond())}
		}
		mt := vfs.Timespec{Omit: !mok}
		if mok {
			mt = vfs.Timespec{Sec: mtime.Unix(), Nsec: int64(mtime.Nanosecond())}
		}
		if err := n.vfs.Utimens(p, at, mt); err != nil {
			return errnoOf(err)
		}
	}

	attr, err := n.vfs.Getattr(p)
	if err != nil {
		return errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return 0
}

// fileHandle is the gofuse-facing wrapper around a vfs.FileHandle;
// go-fuse treats FileHandle as an opaque interface{} it hands back to
// Read/Write/Release.
type fileHandle struct {
	fh vfs.FileHandle
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fh, err := n.vfs.Open(n.path(), flags)
	if err != nil {
		return nil, 0, errnoOf(err)
	}
	return &fileHandle{fh: fh}, 0, 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	childPath := n.child(name)
	fh, err := n.vfs.Create(childPath, flags, mode)
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}

	attr, err := n.vfs.Getattr(childPath)
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return n.newChild(ctx, attr.Mode), &fileHandle{fh: fh}, 0, 0
}

func (n *Node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h, ok := f.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	read, err := n.vfs.Read(h.fh, dest, off)
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(dest[:read]), 0
}

func (n *Node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	h, ok := f.(*fileHandle)
	if !ok {
		return 0, syscall.EBADF
	}
	written, err := n.vfs.Write(h.fh, data, off)
	if err != nil {
		return uint32(written), errnoOf(err)
	}
	return uint32(written), 0
}

func (n *Node) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	h, ok := f.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	return errnoOf(n.vfs.Close(h.fh))
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := n.child(name)
	if err := n.vfs.Mkdir(childPath, mode); err != nil {
		return nil, errnoOf(err)
	}
	attr, err := n.vfs.Getattr(childPath)
	if err != nil {
		return nil, errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return n.newChild(ctx, attr.Mode), 0
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.vfs.Rmdir(n.child(name)))
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.vfs.Unlink(n.child(name)))
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	linkPath := n.child(name)
	if err := n.vfs.Symlink(target, linkPath); err != nil {
		return nil, errnoOf(err)
	}
	attr, err := n.vfs.Getattr(linkPath)
	if err != nil {
		return nil, errnoOf(err)
	}
	setAttr(attr, &out.Attr)
	return n.newChild(ctx, syscall.S_IFLNK), 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.vfs.Readlink(n.path())
	if err != nil {
		return nil, errnoOf(err)
	}
	return []byte(target), 0
}

// Rename forwards to the Vfs with the kernel's rename flags passed
// through unmodified: RENAME_NOREPLACE and RENAME_EXCHANGE share the
// same bit values as vfs.RenameFlags.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	np, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	return errnoOf(n.vfs.Rename(n.child(name), np.child(newName), vfs.RenameFlags(flags)))
}

// sliceDirStream implements fs.DirStream from a pre-built slice.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}

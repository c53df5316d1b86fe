// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package kbridge

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dsiroky/rewofs/internal/vfs"
)

// setAttr copies a vfs.Attr into the kernel-facing fuse.Attr. Field
// names mirror the FUSE wire ABI (fuse_attr), which is what
// fuse.Attr itself mirrors.
func setAttr(attr vfs.Attr, out *fuse.Attr) {
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Size = uint64(attr.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Atime = uint64(attr.Atime.Sec)
	out.Atimensec = uint32(attr.Atime.Nsec)
	out.Mtime = uint64(attr.Mtime.Sec)
	out.Mtimensec = uint32(attr.Mtime.Nsec)
	out.Ctime = uint64(attr.Ctime.Sec)
	out.Ctimensec = uint32(attr.Ctime.Nsec)
}

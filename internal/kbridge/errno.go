// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package kbridge

import (
	"syscall"

	"github.com/dsiroky/rewofs/internal/rerr"
)

// errnoOf is the single place that understands the errno convention
// the kernel expects: every rerr.Kind the VFS layer can produce maps
// to exactly one syscall.Errno here.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch rerr.As(err) {
	case rerr.KindNone:
		return 0
	case rerr.KindNotFound:
		return syscall.ENOENT
	case rerr.KindExists:
		return syscall.EEXIST
	case rerr.KindNotEmpty:
		return syscall.ENOTEMPTY
	case rerr.KindAccessDenied:
		return syscall.EACCES
	case rerr.KindInvalid:
		return syscall.EINVAL
	case rerr.KindBadDescriptor:
		return syscall.EBADF
	case rerr.KindHostUnreachable:
		return syscall.EHOSTUNREACH
	case rerr.KindUnsupportedFlag:
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}

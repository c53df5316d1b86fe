// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"os"
	"syscall"

	"github.com/dsiroky/rewofs/internal/rerr"
)

// translateErrno classifies a raw OS/syscall error into one of the
// nine wire error kinds and wraps it. Every server handler funnels its
// os.* / unix.* errors through this before replying, so the client
// only ever sees the closed Kind set, never a raw errno.
func translateErrno(err error, path string) error {
	if err == nil {
		return nil
	}
	return rerr.Wrap(kindFromErr(err), path, err)
}

func kindFromErr(err error) rerr.Kind {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return rerr.KindNotFound
		case syscall.EEXIST:
			return rerr.KindExists
		case syscall.ENOTEMPTY:
			return rerr.KindNotEmpty
		case syscall.EACCES, syscall.EPERM:
			return rerr.KindAccessDenied
		case syscall.EINVAL, syscall.ENOTDIR, syscall.EISDIR, syscall.EXDEV:
			return rerr.KindInvalid
		case syscall.EBADF:
			return rerr.KindBadDescriptor
		case syscall.ENOSYS, syscall.EOPNOTSUPP:
			return rerr.KindUnsupportedFlag
		default:
			return rerr.KindIoError
		}
	}

	switch {
	case os.IsNotExist(err):
		return rerr.KindNotFound
	case os.IsExist(err):
		return rerr.KindExists
	case os.IsPermission(err):
		return rerr.KindAccessDenied
	default:
		return rerr.KindIoError
	}
}

// errnoOf converts any error (nil included) into the uint8 wire value
// a handler's result carries.
func errnoOf(err error) uint8 {
	return uint8(rerr.As(err))
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"math/rand"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/wire"
)

// renameWithFlags performs the rename named by the wire rename flags.
// It tries the host's native renameat2 first, which is atomic for the
// no-replace and exchange variants; if that fails with ENOSYS (old
// kernels) or EINVAL (a filesystem that does not support the flag) it
// falls back to the emulated paths below, which per DESIGN NOTES are a
// known non-crash-atomic path.
func renameWithFlags(from, to string, flags uint8) error {
	var unixFlags uint
	switch flags {
	case wire.RenameNoReplace:
		unixFlags = unix.RENAME_NOREPLACE
	case wire.RenameExchange:
		unixFlags = unix.RENAME_EXCHANGE
	}

	err := unix.Renameat2(unix.AT_FDCWD, from, unix.AT_FDCWD, to, unixFlags)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EINVAL) {
		return translateErrno(err, from)
	}

	switch flags {
	case wire.RenameNoReplace:
		return renameNoReplaceEmulated(from, to)
	case wire.RenameExchange:
		return renameExchangeEmulated(from, to)
	default:
		if err := os.Rename(from, to); err != nil {
			return translateErrno(err, from)
		}
		return nil
	}
}

func renameNoReplaceEmulated(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return rerr.New(rerr.KindExists, to)
	} else if !os.IsNotExist(err) {
		return translateErrno(err, to)
	}
	if err := os.Rename(from, to); err != nil {
		return translateErrno(err, from)
	}
	return nil
}

// renameExchangeEmulated swaps from and to via a temporary name when
// the kernel lacks native RENAME_EXCHANGE. Not crash-atomic: a crash
// between the second and third rename leaves "to" under the temporary
// name.
func renameExchangeEmulated(from, to string) error {
	tmp := from + tempSuffix()

	if err := os.Rename(from, tmp); err != nil {
		return translateErrno(err, from)
	}
	if err := os.Rename(to, from); err != nil {
		return translateErrno(err, to)
	}
	if err := os.Rename(tmp, to); err != nil {
		return translateErrno(err, tmp)
	}
	return nil
}

func tempSuffix() string {
	return ".rewofs-exchange-" + itoaRand()
}

func itoaRand() string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 12)
	for i := range buf {
		buf[i] = digits[rand.Intn(len(digits))]
	}
	return string(buf)
}

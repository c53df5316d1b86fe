// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"syscall"

	"github.com/dsiroky/rewofs/internal/wire"
)

// lstatAttr lstats path and converts the result to a wire.Attr.
func lstatAttr(path string) (wire.Attr, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return wire.Attr{}, err
	}
	return attrFromFileInfo(info), nil
}

func attrFromFileInfo(info os.FileInfo) wire.Attr {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return wire.Attr{Mode: uint32(info.Mode()), Size: info.Size(), Nlink: 1}
	}
	return wire.Attr{
		Mode:  st.Mode,
		Nlink: uint32(st.Nlink),
		Size:  st.Size,
		Atime: timespecFromUnix(st.Atim),
		Ctime: timespecFromUnix(st.Ctim),
		Mtime: timespecFromUnix(st.Mtim),
	}
}

func timespecFromUnix(ts syscall.Timespec) wire.Timespec {
	return wire.Timespec{Sec: int64(ts.Sec), Nsec: int64(ts.Nsec)}
}

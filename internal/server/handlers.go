// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/dsiroky/rewofs/internal/wire"
)

// mapPath turns a "/"-rooted client path into a host path under the
// served directory.
func (s *Server) mapPath(clientPath string) string {
	clean := filepath.Clean("/" + clientPath)
	return filepath.Join(s.root, strings.TrimPrefix(clean, "/"))
}

func (s *Server) ignore(path string) {
	s.ignores.Add(s.clk.Now(), filepath.Clean("/"+path))
}

func (s *Server) handlePing(f wire.Frame) (wire.Kind, any) {
	return wire.KindPong, wire.Pong{}
}

func (s *Server) handleReadTree(f wire.Frame) (wire.Kind, any) {
	var cmd wire.ReadTreeCommand
	f.Decode(&cmd)
	hostPath := s.mapPath(cmd.Path)
	return wire.KindTreeResult, wire.TreeResult{Errno: 0, Root: buildTree(hostPath, 0)}
}

func (s *Server) handleStat(f wire.Frame) (wire.Kind, any) {
	var cmd wire.StatCommand
	f.Decode(&cmd)
	attr, err := lstatAttr(s.mapPath(cmd.Path))
	if err != nil {
		return wire.KindStatResult, wire.StatResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}
	return wire.KindStatResult, wire.StatResult{Attr: attr}
}

func (s *Server) handleReaddir(f wire.Frame) (wire.Kind, any) {
	var cmd wire.ReaddirCommand
	f.Decode(&cmd)
	hostPath := s.mapPath(cmd.Path)

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		return wire.KindReaddirResult, wire.ReaddirResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}

	out := make([]wire.DirEntry, 0, len(entries))
	for _, e := range entries {
		attr, err := lstatAttr(filepath.Join(hostPath, e.Name()))
		if err != nil {
			out = append(out, wire.DirEntry{Name: e.Name()})
			continue
		}
		out = append(out, wire.DirEntry{Name: e.Name(), Attr: attr})
	}
	return wire.KindReaddirResult, wire.ReaddirResult{Entries: out}
}

func (s *Server) handleReadlink(f wire.Frame) (wire.Kind, any) {
	var cmd wire.ReadlinkCommand
	f.Decode(&cmd)
	target, err := os.Readlink(s.mapPath(cmd.Path))
	if err != nil {
		return wire.KindReadlinkResult, wire.ReadlinkResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}
	return wire.KindReadlinkResult, wire.ReadlinkResult{Target: target}
}

func (s *Server) handleMkdir(f wire.Frame) (wire.Kind, any) {
	var cmd wire.MkdirCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	err := unix.Mkdir(s.mapPath(cmd.Path), cmd.Mode)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func (s *Server) handleRmdir(f wire.Frame) (wire.Kind, any) {
	var cmd wire.RmdirCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	err := unix.Rmdir(s.mapPath(cmd.Path))
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func (s *Server) handleUnlink(f wire.Frame) (wire.Kind, any) {
	var cmd wire.UnlinkCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	err := unix.Unlink(s.mapPath(cmd.Path))
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func (s *Server) handleSymlink(f wire.Frame) (wire.Kind, any) {
	var cmd wire.SymlinkCommand
	f.Decode(&cmd)
	s.ignore(cmd.Link)
	err := unix.Symlink(cmd.Target, s.mapPath(cmd.Link))
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Link))}
}

func (s *Server) handleRename(f wire.Frame) (wire.Kind, any) {
	var cmd wire.RenameCommand
	f.Decode(&cmd)
	s.ignore(cmd.From)
	s.ignore(cmd.To)
	err := renameWithFlags(s.mapPath(cmd.From), s.mapPath(cmd.To), cmd.Flags)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(err)}
}

func (s *Server) handleChmod(f wire.Frame) (wire.Kind, any) {
	var cmd wire.ChmodCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	err := unix.Chmod(s.mapPath(cmd.Path), cmd.Mode)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func (s *Server) handleUtimens(f wire.Frame) (wire.Kind, any) {
	var cmd wire.UtimensCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)

	ts := [2]unix.Timespec{
		timespecOrOmit(cmd.Atime, cmd.AtimeOmit),
		timespecOrOmit(cmd.Mtime, cmd.MtimeOmit),
	}
	err := unix.UtimesNanoAt(unix.AT_FDCWD, s.mapPath(cmd.Path), ts[:], unix.AT_SYMLINK_NOFOLLOW)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func timespecOrOmit(ts wire.Timespec, omit bool) unix.Timespec {
	if omit {
		return unix.Timespec{Sec: 0, Nsec: unix.UTIME_OMIT}
	}
	return unix.NsecToTimespec(ts.Sec*1e9 + ts.Nsec)
}

func (s *Server) handleTruncate(f wire.Frame) (wire.Kind, any) {
	var cmd wire.TruncateCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	err := unix.Truncate(s.mapPath(cmd.Path), cmd.Length)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
}

func (s *Server) handleOpen(f wire.Frame) (wire.Kind, any) {
	var cmd wire.OpenCommand
	f.Decode(&cmd)
	s.ignore(cmd.Path)
	hostPath := s.mapPath(cmd.Path)

	mode := os.FileMode(0o644)
	if cmd.HasMode {
		mode = os.FileMode(cmd.Mode)
	}

	file, err := os.OpenFile(hostPath, int(cmd.Flags), mode)
	if err != nil {
		return wire.KindOpenResult, wire.OpenResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}

	if err := s.openFiles.Insert(cmd.Handle, file, cmd.Path); err != nil {
		file.Close()
		return wire.KindOpenResult, wire.OpenResult{Errno: errnoOf(err)}
	}
	return wire.KindOpenResult, wire.OpenResult{Errno: 0}
}

func (s *Server) handleClose(f wire.Frame) (wire.Kind, any) {
	var cmd wire.CloseCommand
	f.Decode(&cmd)

	path := s.openFiles.PathOf(cmd.Handle)
	if path != "" {
		s.ignore(path)
	}

	err := s.openFiles.withEntry(cmd.Handle, func(entry *fileEntry) error {
		return entry.file.Close()
	})
	s.openFiles.Remove(cmd.Handle)
	return wire.KindErrnoResult, wire.ErrnoResult{Errno: errnoOf(translateErrno(err, path))}
}

func (s *Server) handleRead(f wire.Frame) (wire.Kind, any) {
	var cmd wire.ReadCommand
	f.Decode(&cmd)

	var data []byte
	var opErr error
	err := s.openFiles.withEntry(cmd.Handle, func(entry *fileEntry) error {
		buf := make([]byte, cmd.Size)
		n, readErr := entry.file.ReadAt(buf, cmd.Offset)
		data = buf[:n]
		if readErr != nil && n == 0 {
			opErr = readErr
		}
		return nil
	})
	if err != nil {
		return wire.KindReadResult, wire.ReadResult{Errno: errnoOf(translateErrno(err, ""))}
	}
	if opErr != nil {
		return wire.KindReadResult, wire.ReadResult{Errno: errnoOf(translateErrno(opErr, ""))}
	}
	return wire.KindReadResult, wire.ReadResult{Data: data}
}

func (s *Server) handleWrite(f wire.Frame) (wire.Kind, any) {
	var cmd wire.WriteCommand
	f.Decode(&cmd)

	path := s.openFiles.PathOf(cmd.Handle)
	if path != "" {
		s.ignore(path)
	}

	var written int
	var opErr error
	err := s.openFiles.withEntry(cmd.Handle, func(entry *fileEntry) error {
		n, writeErr := entry.file.WriteAt(cmd.Data, cmd.Offset)
		written = n
		opErr = writeErr
		return nil
	})
	if err != nil {
		return wire.KindWriteResult, wire.WriteResult{Errno: errnoOf(translateErrno(err, path))}
	}
	if opErr != nil {
		return wire.KindWriteResult, wire.WriteResult{Written: uint32(written), Errno: errnoOf(translateErrno(opErr, path))}
	}
	return wire.KindWriteResult, wire.WriteResult{Written: uint32(written)}
}

func (s *Server) handlePreread(f wire.Frame) (wire.Kind, any) {
	var cmd wire.PrereadCommand
	f.Decode(&cmd)
	hostPath := s.mapPath(cmd.Path)

	file, err := os.Open(hostPath)
	if err != nil {
		return wire.KindPrereadResult, wire.PrereadResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}
	defer file.Close()

	buf := make([]byte, cmd.Size)
	n, err := file.ReadAt(buf, cmd.Offset)
	if err != nil && n == 0 {
		return wire.KindPrereadResult, wire.PrereadResult{Errno: errnoOf(translateErrno(err, cmd.Path))}
	}
	return wire.KindPrereadResult, wire.PrereadResult{Data: buf[:n]}
}

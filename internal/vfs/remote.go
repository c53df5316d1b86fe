// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/wire"
)

// fragmentSize bounds a single read/write chunk sent over the wire.
// Larger requests are split into this many bytes per command so one
// giant I/O cannot monopolize the connection.
const fragmentSize = wire.FragmentSize

// RemoteVfs issues exactly one round trip per filesystem call (more
// for fragmented reads/writes); it holds no cache of its own. Every
// method is safe for concurrent use.
type RemoteVfs struct {
	ser   *transport.Serializer
	deser *transport.Deserializer

	nextHandle atomic.Uint64

	mu    sync.Mutex
	files map[FileHandle]string // handle -> path, for diagnostics
}

// NewRemoteVfs creates a RemoteVfs that sends commands through ser and
// matches replies through deser.
func NewRemoteVfs(ser *transport.Serializer, deser *transport.Deserializer) *RemoteVfs {
	return &RemoteVfs{
		ser:   ser,
		deser: deser,
		files: make(map[FileHandle]string),
	}
}

func replyErr(path string, errno uint8) error {
	if errno == 0 {
		return nil
	}
	return rerr.New(rerr.Kind(errno), path)
}

func call[TResult any](ser *transport.Serializer, deser *transport.Deserializer, priority transport.Priority, kind wire.Kind, payload any, resultKind wire.Kind) (TResult, error) {
	return transport.Call[TResult](context.Background(), ser, deser, priority, kind, payload, transport.DefaultTimeout, resultKind)
}

func (r *RemoteVfs) Getattr(path string) (Attr, error) {
	result, err := call[wire.StatResult](r.ser, r.deser, transport.PriorityDefault, wire.KindStatCommand, wire.StatCommand{Path: path}, wire.KindStatResult)
	if err != nil {
		return Attr{}, err
	}
	if err := replyErr(path, result.Errno); err != nil {
		return Attr{}, err
	}
	return result.Attr, nil
}

func (r *RemoteVfs) Readdir(path string, sink func(DirEntry)) error {
	result, err := call[wire.ReaddirResult](r.ser, r.deser, transport.PriorityDefault, wire.KindReaddirCommand, wire.ReaddirCommand{Path: path}, wire.KindReaddirResult)
	if err != nil {
		return err
	}
	if err := replyErr(path, result.Errno); err != nil {
		return err
	}
	for _, e := range result.Entries {
		sink(DirEntry{Name: e.Name, Attr: e.Attr})
	}
	return nil
}

func (r *RemoteVfs) Readlink(path string) (string, error) {
	result, err := call[wire.ReadlinkResult](r.ser, r.deser, transport.PriorityDefault, wire.KindReadlinkCommand, wire.ReadlinkCommand{Path: path}, wire.KindReadlinkResult)
	if err != nil {
		return "", err
	}
	if err := replyErr(path, result.Errno); err != nil {
		return "", err
	}
	return result.Target, nil
}

func (r *RemoteVfs) Mkdir(path string, mode uint32) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindMkdirCommand, wire.MkdirCommand{Path: path, Mode: mode}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) Rmdir(path string) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindRmdirCommand, wire.RmdirCommand{Path: path}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) Unlink(path string) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindUnlinkCommand, wire.UnlinkCommand{Path: path}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) Symlink(target, link string) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindSymlinkCommand, wire.SymlinkCommand{Target: target, Link: link}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(link, result.Errno)
}

func (r *RemoteVfs) Rename(from, to string, flags RenameFlags) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindRenameCommand, wire.RenameCommand{From: from, To: to, Flags: uint8(flags)}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(from, result.Errno)
}

func (r *RemoteVfs) Chmod(path string, mode uint32) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindChmodCommand, wire.ChmodCommand{Path: path, Mode: mode}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) Utimens(path string, atime, mtime Timespec) error {
	cmd := wire.UtimensCommand{
		Path:      path,
		Atime:     wire.Timespec{Sec: atime.Sec, Nsec: atime.Nsec},
		AtimeOmit: atime.Omit,
		Mtime:     wire.Timespec{Sec: mtime.Sec, Nsec: mtime.Nsec},
		MtimeOmit: mtime.Omit,
	}
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindUtimensCommand, cmd, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) Truncate(path string, length int64) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindTruncateCommand, wire.TruncateCommand{Path: path, Length: length}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	return replyErr(path, result.Errno)
}

func (r *RemoteVfs) openCommon(path string, flags uint32, mode *uint32) (FileHandle, error) {
	fh := FileHandle(r.nextHandle.Add(1))
	cmd := wire.OpenCommand{Path: path, Handle: uint64(fh), Flags: flags}
	if mode != nil {
		cmd.Mode = *mode
		cmd.HasMode = true
	}

	result, err := call[wire.OpenResult](r.ser, r.deser, transport.PriorityDefault, wire.KindOpenCommand, cmd, wire.KindOpenResult)
	if err != nil {
		return 0, err
	}
	if err := replyErr(path, result.Errno); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.files[fh] = path
	r.mu.Unlock()
	return fh, nil
}

func (r *RemoteVfs) Create(path string, flags uint32, mode uint32) (FileHandle, error) {
	return r.openCommon(path, flags, &mode)
}

func (r *RemoteVfs) Open(path string, flags uint32) (FileHandle, error) {
	return r.openCommon(path, flags, nil)
}

func (r *RemoteVfs) Close(fh FileHandle) error {
	result, err := call[wire.ErrnoResult](r.ser, r.deser, transport.PriorityDefault, wire.KindCloseCommand, wire.CloseCommand{Handle: uint64(fh)}, wire.KindErrnoResult)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.files, fh)
	r.mu.Unlock()
	return replyErr("", result.Errno)
}

func (r *RemoteVfs) pathOf(fh FileHandle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[fh]
}

// Read fragments the request at fragmentSize, enqueuing every chunk
// command up front on a single queue before awaiting any reply, then
// collects replies in order. The first chunk failure stops the
// collection and is returned as the error; a short chunk also stops it
// but without an error. Either way, bytes already copied from earlier
// chunks are kept in the returned count.
func (r *RemoteVfs) Read(fh FileHandle, out []byte, offset int64) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	path := r.pathOf(fh)

	q := r.ser.NewQueue(transport.PriorityDefault)
	defer q.Close()

	type pendingChunk struct {
		id   uint64
		off  int
		size int
	}
	var pending []pendingChunk

	for pos := 0; pos < len(out); {
		size := len(out) - pos
		if size > fragmentSize {
			size = fragmentSize
		}
		id, err := q.Add(wire.KindReadCommand, wire.ReadCommand{Handle: uint64(fh), Offset: offset + int64(pos), Size: uint32(size)})
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingChunk{id: id, off: pos, size: size})
		pos += size
	}

	total := 0
	for _, p := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
		result, err := transport.WaitForResult[wire.ReadResult](ctx, r.deser, p.id, wire.KindReadResult)
		cancel()
		if err != nil {
			return total, rerr.Wrap(rerr.KindHostUnreachable, path, err)
		}
		if err := replyErr(path, result.Errno); err != nil {
			return total, err
		}
		n := copy(out[p.off:p.off+p.size], result.Data)
		total += n
		if n < p.size {
			break
		}
	}
	return total, nil
}

// Write fragments the request the same way Read does.
func (r *RemoteVfs) Write(fh FileHandle, in []byte, offset int64) (int, error) {
	if len(in) == 0 {
		return 0, nil
	}
	path := r.pathOf(fh)

	q := r.ser.NewQueue(transport.PriorityDefault)
	defer q.Close()

	type pendingChunk struct {
		id   uint64
		size int
	}
	var pending []pendingChunk

	for pos := 0; pos < len(in); {
		size := len(in) - pos
		if size > fragmentSize {
			size = fragmentSize
		}
		id, err := q.Add(wire.KindWriteCommand, wire.WriteCommand{Handle: uint64(fh), Offset: offset + int64(pos), Data: in[pos : pos+size]})
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingChunk{id: id, size: size})
		pos += size
	}

	total := 0
	for _, p := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultTimeout)
		result, err := transport.WaitForResult[wire.WriteResult](ctx, r.deser, p.id, wire.KindWriteResult)
		cancel()
		if err != nil {
			return total, rerr.Wrap(rerr.KindHostUnreachable, path, err)
		}
		if err := replyErr(path, result.Errno); err != nil {
			return total, err
		}
		total += int(result.Written)
		if int(result.Written) < p.size {
			break
		}
	}
	return total, nil
}

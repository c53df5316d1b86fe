// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"sync"
	"syscall"
	"testing"

	"github.com/dsiroky/rewofs/internal/rerr"
)

// stubVfs is a minimal in-memory Vfs used to drive CachedVfs without
// a real transport. Only the methods CachedVfs actually calls are
// exercised by these tests.
type stubVfs struct {
	mu    sync.Mutex
	files map[string][]byte
	attrs map[string]Attr
	calls []string
}

func newStubVfs() *stubVfs {
	return &stubVfs{files: make(map[string][]byte), attrs: make(map[string]Attr)}
}

func (s *stubVfs) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *stubVfs) Getattr(path string) (Attr, error) {
	s.record("getattr:" + path)
	a, ok := s.attrs[path]
	if !ok {
		return Attr{}, rerr.New(rerr.KindNotFound, path)
	}
	return a, nil
}
func (s *stubVfs) Readdir(path string, sink func(DirEntry)) error { return nil }
func (s *stubVfs) Readlink(path string) (string, error)          { return "", nil }

func (s *stubVfs) Mkdir(path string, mode uint32) error {
	s.record("mkdir:" + path)
	s.attrs[path] = Attr{Mode: mode}
	return nil
}
func (s *stubVfs) Rmdir(path string) error { s.record("rmdir:" + path); return nil }
func (s *stubVfs) Unlink(path string) error {
	s.record("unlink:" + path)
	delete(s.files, path)
	return nil
}
func (s *stubVfs) Symlink(target, link string) error { return nil }
func (s *stubVfs) Rename(from, to string, flags RenameFlags) error {
	s.record("rename")
	return nil
}
func (s *stubVfs) Chmod(path string, mode uint32) error {
	s.attrs[path] = Attr{Mode: mode}
	return nil
}
func (s *stubVfs) Utimens(path string, atime, mtime Timespec) error {
	s.record("utimens:" + path)
	return nil
}
func (s *stubVfs) Truncate(path string, length int64) error {
	s.attrs[path] = Attr{Size: length}
	return nil
}

func (s *stubVfs) Create(path string, flags uint32, mode uint32) (FileHandle, error) {
	s.record("create:" + path)
	s.attrs[path] = Attr{Mode: mode}
	s.files[path] = nil
	return FileHandle(len(s.calls)), nil
}
func (s *stubVfs) Open(path string, flags uint32) (FileHandle, error) {
	s.record("open:" + path)
	return FileHandle(len(s.calls)), nil
}
func (s *stubVfs) Close(fh FileHandle) error { return nil }

func (s *stubVfs) Read(fh FileHandle, out []byte, offset int64) (int, error) {
	s.record("read")
	return 0, nil
}
func (s *stubVfs) Write(fh FileHandle, in []byte, offset int64) (int, error) {
	s.record("write")
	return len(in), nil
}

func TestCachedVfsMkdirThenGetattr(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)

	if err := c.Mkdir("/dir", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	attr, err := c.Getattr("/dir")
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Mode != 0o755 {
		t.Fatalf("expected refreshed mode 0755, got %o", attr.Mode)
	}
}

func TestCachedVfsUnlinkRemovesFromTreeAndContent(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)
	if err := c.Mkdir("/dir", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	fh, err := c.Create("/dir/f", 0, 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Write(fh, []byte("data"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Unlink("/dir/f"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if _, err := c.Getattr("/dir/f"); rerr.As(err) != rerr.KindNotFound {
		t.Fatalf("expected not-found after unlink, got %v", err)
	}
	c.Cache().Lock()
	_, cached := c.Cache().Content().Read("/dir/f", 0, 4)
	c.Cache().Unlock()
	if cached {
		t.Fatal("expected cached content to be dropped after unlink")
	}
}

func TestCachedVfsUtimensSkipsRemoteWhenMtimeOmitted(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)
	if err := c.Mkdir("/dir", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	if err := c.Utimens("/dir", Timespec{Sec: 1}, Timespec{Omit: true}); err != nil {
		t.Fatalf("Utimens: %v", err)
	}
	for _, call := range sub.calls {
		if call == "utimens:/dir" {
			t.Fatal("expected utimens call to be skipped when mtime is omitted")
		}
	}
}

func TestCachedVfsReadHitsContentCacheWithoutRemoteRead(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)

	fh, err := c.Create("/f", 0, 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Write(fh, []byte("hello"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := make([]byte, 5)
	n, err := c.Read(fh, out, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || string(out) != "hello" {
		t.Fatalf("got %q", out[:n])
	}
	for _, call := range sub.calls {
		if call == "read" {
			t.Fatal("expected cache hit, not a remote read call")
		}
	}
}

func TestCachedVfsOpenReadOnlyIsLazy(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)

	fh, err := c.Open("/f", syscall.O_RDONLY)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, call := range sub.calls {
		if call == "open:/f" {
			t.Fatal("expected read-only open to be lazy (no remote call yet)")
		}
	}

	out := make([]byte, 4)
	if _, err := c.Read(fh, out, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	found := false
	for _, call := range sub.calls {
		if call == "open:/f" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a cache-miss read to trigger a lazy remote open")
	}
}

func TestCachedVfsWriteRequiresWritableHandle(t *testing.T) {
	sub := newStubVfs()
	sub.attrs["/"] = Attr{}
	c := NewCachedVfs(sub)

	fh, err := c.Open("/f", syscall.O_RDONLY)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Write(fh, []byte("x"), 0); rerr.As(err) != rerr.KindBadDescriptor {
		t.Fatalf("expected bad-descriptor for write on read-only handle, got %v", err)
	}
}

func TestCachedVfsCloseUnknownHandleFails(t *testing.T) {
	c := NewCachedVfs(newStubVfs())
	if err := c.Close(FileHandle(999)); rerr.As(err) != rerr.KindBadDescriptor {
		t.Fatalf("expected bad-descriptor, got %v", err)
	}
}

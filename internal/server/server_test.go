// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dsiroky/rewofs/internal/clock"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/watcher"
	"github.com/dsiroky/rewofs/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T, root string) (net.Conn, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	ser := transport.NewSerializer()
	ignores := watcher.NewTemporalIgnores(time.Second)
	s := New(root, ser, ignores, clock.Real(), discardLogger())
	s.SetNumWorkers(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Serve(ctx, serverConn)
		close(done)
	}()

	return clientConn, func() {
		cancel()
		clientConn.Close()
		<-done
	}
}

func roundTrip(t *testing.T, conn net.Conn, id uint64, kind wire.Kind, payload any, out any) {
	t.Helper()
	frame, err := wire.Encode(id, kind, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := wire.WriteFrame(conn, frame, false); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	reply, err := wire.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if reply.ID != id {
		t.Fatalf("got reply id %d, want %d", reply.ID, id)
	}
	if err := reply.Decode(out); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
}

func TestServerMkdirAndStat(t *testing.T) {
	root := t.TempDir()
	conn, stop := startTestServer(t, root)
	defer stop()

	var mkdirResult wire.ErrnoResult
	roundTrip(t, conn, 1, wire.KindMkdirCommand, wire.MkdirCommand{Path: "/d", Mode: 0o755}, &mkdirResult)
	if mkdirResult.Errno != 0 {
		t.Fatalf("mkdir errno %d", mkdirResult.Errno)
	}
	if info, err := os.Stat(filepath.Join(root, "d")); err != nil || !info.IsDir() {
		t.Fatalf("expected /d to exist as a directory: %v", err)
	}

	var statResult wire.StatResult
	roundTrip(t, conn, 2, wire.KindStatCommand, wire.StatCommand{Path: "/d"}, &statResult)
	if statResult.Errno != 0 {
		t.Fatalf("stat errno %d", statResult.Errno)
	}
}

func TestServerWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	conn, stop := startTestServer(t, root)
	defer stop()

	var openResult wire.OpenResult
	mode := uint32(0o644)
	roundTrip(t, conn, 1, wire.KindOpenCommand, wire.OpenCommand{Path: "/f", Handle: 7, Flags: uint32(os.O_CREATE | os.O_RDWR), Mode: mode, HasMode: true}, &openResult)
	if openResult.Errno != 0 {
		t.Fatalf("open errno %d", openResult.Errno)
	}

	var writeResult wire.WriteResult
	roundTrip(t, conn, 2, wire.KindWriteCommand, wire.WriteCommand{Handle: 7, Offset: 0, Data: []byte("hello")}, &writeResult)
	if writeResult.Errno != 0 || writeResult.Written != 5 {
		t.Fatalf("got write result %+v", writeResult)
	}

	var readResult wire.ReadResult
	roundTrip(t, conn, 3, wire.KindReadCommand, wire.ReadCommand{Handle: 7, Offset: 0, Size: 5}, &readResult)
	if readResult.Errno != 0 || string(readResult.Data) != "hello" {
		t.Fatalf("got read result %+v", readResult)
	}

	var closeResult wire.ErrnoResult
	roundTrip(t, conn, 4, wire.KindCloseCommand, wire.CloseCommand{Handle: 7}, &closeResult)
	if closeResult.Errno != 0 {
		t.Fatalf("close errno %d", closeResult.Errno)
	}
}

func TestServerReadTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "A")
	conn, stop := startTestServer(t, root)
	defer stop()

	var treeResult wire.TreeResult
	roundTrip(t, conn, 1, wire.KindReadTreeCommand, wire.ReadTreeCommand{Path: "/"}, &treeResult)
	if treeResult.Errno != 0 {
		t.Fatalf("read-tree errno %d", treeResult.Errno)
	}
	if len(treeResult.Root.Children) != 1 || treeResult.Root.Children[0].Name != "a.txt" {
		t.Fatalf("got root children %+v", treeResult.Root.Children)
	}
}

func TestServerStatMissingFileReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	conn, stop := startTestServer(t, root)
	defer stop()

	var statResult wire.StatResult
	roundTrip(t, conn, 1, wire.KindStatCommand, wire.StatCommand{Path: "/missing"}, &statResult)
	if statResult.Errno == 0 {
		t.Fatal("expected a non-zero errno for a missing file")
	}
}

func TestServerPing(t *testing.T) {
	root := t.TempDir()
	conn, stop := startTestServer(t, root)
	defer stop()

	var pong wire.Pong
	roundTrip(t, conn, 1, wire.KindPing, wire.Ping{}, &pong)
}

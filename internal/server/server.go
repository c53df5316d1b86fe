// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the remote side of the protocol: a fixed
// worker pool that turns inbound frames into filesystem syscalls
// against the served directory, an open-file table, and the three
// rename variants.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/dsiroky/rewofs/internal/clock"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/watcher"
	"github.com/dsiroky/rewofs/internal/wire"
)

// DefaultNumWorkers is the size of the fixed worker pool.
const DefaultNumWorkers = 50

type handlerFunc func(f wire.Frame) (wire.Kind, any)

// Server answers one connection's worth of filesystem commands
// against root.
type Server struct {
	root       string
	ser        *transport.Serializer
	ignores    *watcher.TemporalIgnores
	clk        clock.Clock
	openFiles  *OpenFileTable
	logger     *slog.Logger
	numWorkers int
	handlers   map[wire.Kind]handlerFunc
}

// New creates a Server rooted at root. ignores is shared with the
// watcher for this connection's served directory so the server's own
// mutating handlers can suppress the inotify events they trigger.
func New(root string, ser *transport.Serializer, ignores *watcher.TemporalIgnores, clk clock.Clock, logger *slog.Logger) *Server {
	s := &Server{
		root:       root,
		ser:        ser,
		ignores:    ignores,
		clk:        clk,
		openFiles:  NewOpenFileTable(),
		logger:     logger,
		numWorkers: DefaultNumWorkers,
	}
	s.handlers = map[wire.Kind]handlerFunc{
		wire.KindPing:            s.handlePing,
		wire.KindReadTreeCommand: s.handleReadTree,
		wire.KindStatCommand:     s.handleStat,
		wire.KindReaddirCommand:  s.handleReaddir,
		wire.KindReadlinkCommand: s.handleReadlink,
		wire.KindMkdirCommand:    s.handleMkdir,
		wire.KindRmdirCommand:    s.handleRmdir,
		wire.KindUnlinkCommand:   s.handleUnlink,
		wire.KindSymlinkCommand:  s.handleSymlink,
		wire.KindRenameCommand:   s.handleRename,
		wire.KindChmodCommand:    s.handleChmod,
		wire.KindUtimensCommand:  s.handleUtimens,
		wire.KindTruncateCommand: s.handleTruncate,
		wire.KindOpenCommand:     s.handleOpen,
		wire.KindCloseCommand:    s.handleClose,
		wire.KindReadCommand:     s.handleRead,
		wire.KindWriteCommand:    s.handleWrite,
		wire.KindPrereadCommand:  s.handlePreread,
	}
	return s
}

// SetNumWorkers overrides DefaultNumWorkers; tests use a small pool.
func (s *Server) SetNumWorkers(n int) { s.numWorkers = n }

// Serve runs the receiver, worker pool, and writer for one connection
// until ctx is done or the connection fails: a single receiver
// goroutine feeds a shared channel, numWorkers goroutines drain it
// and reply through ser, and a writer goroutine drains ser onto the
// wire.
func (s *Server) Serve(ctx context.Context, conn net.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan wire.Frame)
	errCh := make(chan error, 2)

	var ioWG sync.WaitGroup
	ioWG.Add(2)

	go func() {
		defer ioWG.Done()
		defer close(inbound)
		for {
			f, err := wire.ReadFrame(conn)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("server: reading frame: %w", err):
				default:
				}
				return
			}
			select {
			case inbound <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer ioWG.Done()
		for {
			f, ok := s.ser.PopWait(ctx)
			if !ok {
				return
			}
			if err := wire.WriteFrame(conn, f, true); err != nil {
				select {
				case errCh <- fmt.Errorf("server: writing frame: %w", err):
				default:
				}
				return
			}
		}
	}()

	q := s.ser.NewQueue(transport.PriorityDefault)
	defer q.Close()

	var workersWG sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		workersWG.Add(1)
		go func() {
			defer workersWG.Done()
			for f := range inbound {
				s.process(q, f)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	cancel()
	conn.Close()
	workersWG.Wait()
	ioWG.Wait()

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func (s *Server) process(q *transport.Queue, f wire.Frame) {
	h, ok := s.handlers[f.Kind]
	if !ok {
		s.logger.Warn("server: unhandled frame kind", "kind", f.Kind)
		return
	}
	kind, payload := h(f)
	if err := q.AddReply(f.ID, kind, payload); err != nil {
		s.logger.Error("server: encoding reply", "kind", kind, "error", err)
	}
}

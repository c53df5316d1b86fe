// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/dsiroky/rewofs/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newPipedConns builds two Conns back to back over an in-memory
// net.Pipe, one playing the client side and one the server side.
func newPipedConns(t *testing.T) (client, server *Conn, clientSer *Serializer, serverSer *Serializer) {
	t.Helper()
	a, b := net.Pipe()

	clientSer = NewSerializer()
	serverSer = NewSerializer()

	client = NewConn(a, clientSer, NewDeserializer(), NewDistributor(), false, discardLogger())
	server = NewConn(b, serverSer, NewDeserializer(), NewDistributor(), false, discardLogger())
	return
}

func TestConnRoundTripRequestReply(t *testing.T) {
	client, server, clientSer, serverSer := newPipedConns(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	serverQueue := serverSer.NewQueue(PriorityDefault)
	server.dist.Register(wire.KindStatCommand, func(f wire.Frame) {
		var cmd wire.StatCommand
		if err := f.Decode(&cmd); err != nil {
			t.Errorf("decoding StatCommand: %v", err)
			return
		}
		if err := serverQueue.AddReply(f.ID, wire.KindStatResult, wire.StatResult{Errno: 0}); err != nil {
			t.Errorf("AddReply: %v", err)
		}
	})

	go client.Run(ctx)
	go server.Run(ctx)

	clientQueue := clientSer.NewQueue(PriorityDefault)
	id, err := clientQueue.Add(wire.KindStatCommand, wire.StatCommand{Path: "/foo"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	result, err := WaitForResult[wire.StatResult](ctx, client.deser, id, wire.KindStatResult)
	if err != nil {
		t.Fatalf("WaitForResult: %v", err)
	}
	if result.Errno != 0 {
		t.Fatalf("expected errno 0, got %d", result.Errno)
	}
}

func TestConnRunReturnsOnContextCancel(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	conn := NewConn(a, NewSerializer(), NewDeserializer(), NewDistributor(), false, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

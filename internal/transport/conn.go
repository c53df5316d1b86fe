// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/dsiroky/rewofs/internal/wire"
)

// Conn drives one established connection: a reader goroutine that
// decodes frames off the wire and routes them through a Deserializer
// then a Distributor, and a writer goroutine that drains a Serializer
// onto the wire. The client binary runs its connection through a
// Conn; the server binary drives its side with server.Server.Serve
// instead, which feeds a worker pool rather than a Deserializer.
type Conn struct {
	netConn  net.Conn
	ser      *Serializer
	deser    *Deserializer
	dist     *Distributor
	compress bool
	logger   *slog.Logger
}

// NewConn wires netConn to the given Serializer (outbound), and routes
// every inbound frame first through deser (reply matching), then
// through dist (unsolicited dispatch) if deser did not claim it.
// compress enables lz4 frame compression on writes.
func NewConn(netConn net.Conn, ser *Serializer, deser *Deserializer, dist *Distributor, compress bool, logger *slog.Logger) *Conn {
	return &Conn{
		netConn:  netConn,
		ser:      ser,
		deser:    deser,
		dist:     dist,
		compress: compress,
		logger:   logger,
	}
}

// Run drives the connection until ctx is cancelled or either
// direction fails, then closes the underlying connection and returns
// the first error encountered (nil on a clean ctx-cancelled
// shutdown).
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		c.netConn.Close()
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- c.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		errs <- c.writeLoop(ctx)
	}()

	first := <-errs
	cancel()
	c.netConn.Close()
	wg.Wait()
	close(errs)

	if ctx.Err() != nil && (first == nil || errors.Is(first, net.ErrClosed) || errors.Is(first, context.Canceled)) {
		return nil
	}
	return first
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		f, err := wire.ReadFrame(c.netConn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: reading frame: %w", err)
		}
		if c.deser.Deliver(f) {
			continue
		}
		if c.dist.Dispatch(f) {
			continue
		}
		c.logger.Warn("dropping unroutable frame", "kind", f.Kind, "id", f.ID)
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		f, ok := c.ser.PopWait(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return nil
		}
		if err := wire.WriteFrame(c.netConn, f, c.compress); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: writing frame: %w", err)
		}
	}
}

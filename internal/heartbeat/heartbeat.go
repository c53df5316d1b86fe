// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package heartbeat drives the client's periodic liveness probe: a
// Ping sent on the high-priority queue, with the observed
// connected/disconnected transitions exposed through a callback,
// built in the style of the client's other background threads.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/dsiroky/rewofs/internal/clock"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/wire"
)

// DefaultPeriod is how often a Ping is sent.
const DefaultPeriod = time.Second

// Heartbeat periodically pings the peer and tracks whether the last
// probe got a timely Pong. OnChange, if set, is called on every
// connected/disconnected transition (never for a repeat of the same
// state).
type Heartbeat struct {
	ser     *transport.Serializer
	deser   *transport.Deserializer
	clk     clock.Clock
	period  time.Duration
	timeout time.Duration

	OnChange func(connected bool)

	mu        sync.Mutex
	connected bool
}

// New creates a Heartbeat that pings every period and considers a
// probe failed if no Pong arrives within timeout.
func New(ser *transport.Serializer, deser *transport.Deserializer, clk clock.Clock, period, timeout time.Duration) *Heartbeat {
	return &Heartbeat{ser: ser, deser: deser, clk: clk, period: period, timeout: timeout}
}

// Connected reports the most recently observed state.
func (h *Heartbeat) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Run sends a Ping every period until ctx is done. It never returns
// an error: a missed Pong just flips the observed state to
// disconnected.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := h.clk.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

func (h *Heartbeat) probe(ctx context.Context) {
	q := h.ser.NewQueue(transport.PriorityHigh)
	defer q.Close()

	id, err := q.Add(wire.KindPing, wire.Ping{})
	if err != nil {
		h.setConnected(false)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	_, err = transport.WaitForResult[wire.Pong](callCtx, h.deser, id, wire.KindPong)
	h.setConnected(err == nil)
}

func (h *Heartbeat) setConnected(connected bool) {
	h.mu.Lock()
	changed := h.connected != connected
	h.connected = connected
	h.mu.Unlock()

	if changed && h.OnChange != nil {
		h.OnChange(connected)
	}
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync"

	"github.com/dsiroky/rewofs/internal/wire"
)

// Handler processes an unsolicited frame (one that is not a reply to
// a pending call), such as a NotifyChanged push from the server or a
// Ping from the peer.
type Handler func(wire.Frame)

// Distributor routes unsolicited inbound frames to a handler
// registered for their Kind. One Distributor per connection.
type Distributor struct {
	mu       sync.Mutex
	handlers map[wire.Kind]Handler
}

// NewDistributor creates an empty Distributor.
func NewDistributor() *Distributor {
	return &Distributor{handlers: make(map[wire.Kind]Handler)}
}

// Register installs h as the handler for kind, replacing any handler
// previously registered for it.
func (d *Distributor) Register(kind wire.Kind, h Handler) {
	d.mu.Lock()
	d.handlers[kind] = h
	d.mu.Unlock()
}

// Dispatch invokes the handler registered for f.Kind, if any. Returns
// false if no handler is registered.
func (d *Distributor) Dispatch(f wire.Frame) bool {
	d.mu.Lock()
	h, ok := d.handlers[f.Kind]
	d.mu.Unlock()
	if !ok {
		return false
	}
	h(f)
	return true
}

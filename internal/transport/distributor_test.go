// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"

	"github.com/dsiroky/rewofs/internal/wire"
)

func TestDistributorDispatchesRegisteredKind(t *testing.T) {
	d := NewDistributor()
	received := make(chan wire.Frame, 1)
	d.Register(wire.KindNotifyChanged, func(f wire.Frame) { received <- f })

	frame, err := wire.Encode(0, wire.KindNotifyChanged, wire.NotifyChanged{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !d.Dispatch(frame) {
		t.Fatal("Dispatch should report true for a registered kind")
	}
	select {
	case f := <-received:
		if f.Kind != wire.KindNotifyChanged {
			t.Fatalf("handler received wrong kind %v", f.Kind)
		}
	default:
		t.Fatal("handler was not invoked")
	}
}

func TestDistributorDispatchUnregisteredKindReturnsFalse(t *testing.T) {
	d := NewDistributor()
	frame, err := wire.Encode(0, wire.KindPing, wire.Ping{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if d.Dispatch(frame) {
		t.Fatal("Dispatch should report false for an unregistered kind")
	}
}

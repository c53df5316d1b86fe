// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"time"

	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/wire"
)

// DefaultTimeout bounds every single-round-trip call. A timed-out
// call is reported as host-unreachable, never as an indefinite hang.
const DefaultTimeout = 30 * time.Second

// Call sends payload as kind on a fresh queue at priority and waits
// up to timeout for a reply of resultKind, decoded into a TResult.
// Each call gets its own throwaway queue, so a slow reply cannot
// head-of-line block unrelated calls sharing the same priority class.
func Call[TResult any](ctx context.Context, ser *Serializer, deser *Deserializer, priority Priority, kind wire.Kind, payload any, timeout time.Duration, resultKind wire.Kind) (TResult, error) {
	var zero TResult

	q := ser.NewQueue(priority)
	defer q.Close()

	id, err := q.Add(kind, payload)
	if err != nil {
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := WaitForResult[TResult](callCtx, deser, id, resultKind)
	if err != nil {
		return zero, rerr.Wrap(rerr.KindHostUnreachable, "", err)
	}
	return result, nil
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport turns a byte stream into the request/reply and
// push-notification protocol the client and server speak: outbound
// frames are queued by priority and drained by a writer goroutine
// (Serializer), replies are matched back to their caller by
// correlation id (Deserializer), and unsolicited frames are routed by
// payload kind (Distributor). Channel-based waiting stands in for the
// usual mutex/condition-variable pairing this shape of queue would
// use in a non-Go setting.
package transport

import (
	"context"
	"sync"

	"github.com/dsiroky/rewofs/internal/wire"
)

// Priority selects which queue a frame is appended to. Pop always
// drains the highest-priority non-empty queue first, so background
// traffic (bulk preloading) never delays interactive requests.
type Priority uint8

const (
	PriorityBackground Priority = 0
	PriorityDefault    Priority = 1
	PriorityHigh       Priority = 2
)

// Serializer multiplexes frames from any number of Queues into a
// single outbound stream, ordered by priority. Each queue is FIFO;
// among non-empty queues of equal priority, the one created first is
// drained first. One Serializer per connection.
type Serializer struct {
	mu     sync.Mutex
	notify chan struct{}
	queues []*queue
	nextID uint64
}

type queue struct {
	priority Priority
	frames   []wire.Frame
}

// NewSerializer creates an empty Serializer. Correlation ids start
// at 1, so 0 can be used as a "no reply expected" sentinel by callers
// that send fire-and-forget frames.
func NewSerializer() *Serializer {
	return &Serializer{notify: make(chan struct{})}
}

// Queue is a handle for adding frames at a fixed priority. Most
// callers open one for a single call or probe and Close it when done
// (see Call); long-lived senders such as the server's worker pool and
// the watcher keep one for the lifetime of a connection.
type Queue struct {
	s *Serializer
	q *queue
}

// NewQueue creates a Queue at the given priority.
func (s *Serializer) NewQueue(priority Priority) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := &queue{priority: priority}
	s.queues = append(s.queues, q)
	return &Queue{s: s, q: q}
}

// Close removes the queue from its Serializer. Frames already queued
// are dropped.
func (q *Queue) Close() {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, qq := range s.queues {
		if qq == q.q {
			s.queues = append(s.queues[:i], s.queues[i+1:]...)
			return
		}
	}
}

// Add encodes payload as kind, assigns it the next correlation id,
// and appends it to the queue. Returns the assigned id so the caller
// can wait for the reply through a Deserializer; the frame may already
// be sent, and answered, by the time Add returns, which is why the
// Deserializer holds early replies as unclaimed.
func (q *Queue) Add(kind wire.Kind, payload any) (uint64, error) {
	s := q.s

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	frame, err := wire.Encode(id, kind, payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	q.q.frames = append(q.q.frames, frame)
	s.wakeLocked()
	s.mu.Unlock()
	return id, nil
}

// AddReply is like Add but reuses an existing correlation id (the id
// of the command this frame answers), rather than minting a new one.
func (q *Queue) AddReply(id uint64, kind wire.Kind, payload any) error {
	s := q.s
	frame, err := wire.Encode(id, kind, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	q.q.frames = append(q.q.frames, frame)
	s.wakeLocked()
	s.mu.Unlock()
	return nil
}

func (s *Serializer) wakeLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *Serializer) consumableLocked() bool {
	for _, q := range s.queues {
		if len(q.frames) > 0 {
			return true
		}
	}
	return false
}

// Pop removes and returns the oldest frame from the highest-priority
// non-empty queue. ok is false if every queue is currently empty.
func (s *Serializer) Pop() (wire.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *Serializer) popLocked() (wire.Frame, bool) {
	var best *queue
	for _, q := range s.queues {
		if len(q.frames) == 0 {
			continue
		}
		if best == nil || q.priority > best.priority {
			best = q
		}
	}
	if best == nil {
		return wire.Frame{}, false
	}
	f := best.frames[0]
	best.frames = best.frames[1:]
	return f, true
}

// Wait blocks until a frame becomes available or ctx is done.
func (s *Serializer) Wait(ctx context.Context) bool {
	s.mu.Lock()
	if s.consumableLocked() {
		s.mu.Unlock()
		return true
	}
	ch := s.notify
	s.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// PopWait pops the next frame, blocking until one is available or ctx
// is done.
func (s *Serializer) PopWait(ctx context.Context) (wire.Frame, bool) {
	for {
		if f, ok := s.Pop(); ok {
			return f, true
		}
		if !s.Wait(ctx) {
			return wire.Frame{}, false
		}
	}
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher drives the server's change-notification side: a
// temporal-ignore set that lets the server's own filesystem handlers
// suppress the inotify events they themselves trigger, and a Watcher
// that turns a non-ignored event into a NotifyChanged frame once the
// tree has stopped changing.
package watcher

import (
	"sync"
	"time"
)

// DefaultIgnoreDuration is how long a path stays ignored after a
// server handler records it.
const DefaultIgnoreDuration = time.Second

type ignoreItem struct {
	at   time.Time
	path string
}

// TemporalIgnores is a tiny, short-lived set of recently
// self-inflicted paths. Every operation is O(n) in the number of
// currently-live entries, which the default duration keeps small.
type TemporalIgnores struct {
	mu       sync.Mutex
	duration time.Duration
	items    []ignoreItem
}

// NewTemporalIgnores creates a set whose entries expire after
// duration.
func NewTemporalIgnores(duration time.Duration) *TemporalIgnores {
	return &TemporalIgnores{duration: duration}
}

// Add records that path was touched at now, so a Check for the same
// path shortly afterwards reports it as ignorable.
func (t *TemporalIgnores) Add(now time.Time, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, ignoreItem{at: now, path: path})
}

// Check expires entries older than now-duration, then reports whether
// path is still present.
func (t *TemporalIgnores) Check(now time.Time, path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.duration)
	live := t.items[:0]
	for _, it := range t.items {
		if !it.at.Before(cutoff) {
			live = append(live, it)
		}
	}
	t.items = live

	for _, it := range t.items {
		if it.path == path {
			return true
		}
	}
	return false
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dsiroky/rewofs/internal/clock"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/wire"
)

// DefaultStabilizeInterval is the sleep between fingerprint attempts
// in the stabilization loop.
const DefaultStabilizeInterval = time.Second

// Watcher watches the served directory recursively and sends
// NotifyChanged once a burst of local changes has stabilized.
// fsnotify.Watcher does not automatically watch new subdirectories, so
// every Create event for a directory gets an explicit Add.
type Watcher struct {
	root     string
	ignores  *TemporalIgnores
	ser      *transport.Serializer
	clk      clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Watcher rooted at root (an absolute host directory).
// It consults ignores before reacting to an event and sends
// NotifyChanged frames through ser.
func New(root string, ignores *TemporalIgnores, ser *transport.Serializer, clk clock.Clock, logger *slog.Logger) *Watcher {
	return &Watcher{root: root, ignores: ignores, ser: ser, clk: clk, interval: DefaultStabilizeInterval, logger: logger}
}

// Run watches until ctx is done. A failure to initialize the watcher
// (e.g. inotify watch limit exhausted) is fatal and returned;
// individual event-handling errors are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.root); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", w.root, err)
	}

	q := w.ser.NewQueue(transport.PriorityHigh)
	defer q.Close()

	w.logger.Info("watcher started", "root", w.root)
	defer w.logger.Info("watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, ev, q)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher", "error", err)
		}
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event, q *transport.Queue) {
	normalized := w.normalize(ev.Name)

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addRecursive(fsw, ev.Name); err != nil {
				w.logger.Warn("watching new directory", "path", ev.Name, "error", err)
			}
		}
	}

	if w.ignores.Check(w.clk.Now(), normalized) {
		w.logger.Debug("watcher ignored", "path", normalized, "op", ev.Op)
		return
	}
	w.logger.Debug("watcher event", "path", normalized, "op", ev.Op)

	if err := w.stabilize(ctx); err != nil {
		if ctx.Err() == nil {
			w.logger.Error("watcher: fingerprinting", "error", err)
		}
		return
	}

	if _, err := q.Add(wire.KindNotifyChanged, wire.NotifyChanged{}); err != nil {
		w.logger.Error("watcher: sending notify-changed", "error", err)
	}
}

// normalize turns a host path rooted at w.root into the "/"-rooted
// path the wire protocol uses.
func (w *Watcher) normalize(hostPath string) string {
	rel, err := filepath.Rel(w.root, hostPath)
	if err != nil {
		return "/"
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "/"
	}
	return "/" + strings.TrimPrefix(rel, "/")
}

// fingerprintEntry is one directory's own path and the number of
// entries it contains, as of one fingerprinting pass.
type fingerprintEntry struct {
	path     string
	children int
}

// fingerprint walks the tree breadth-first, recording (path,
// children count) for every reachable directory. "No such file"
// errors are tolerated: they indicate a directory that disappeared
// mid-edit, which is exactly the transient state this loop is meant
// to ride out.
func fingerprint(root string) ([]fingerprintEntry, error) {
	var result []fingerprintEntry
	queue := []string{root}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		result = append(result, fingerprintEntry{path: dir, children: len(entries)})
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, filepath.Join(dir, e.Name()))
			}
		}
	}
	return result, nil
}

func fingerprintEqual(a, b []fingerprintEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stabilize recomputes the fingerprint until two consecutive passes
// agree, sleeping w.interval between attempts.
func (w *Watcher) stabilize(ctx context.Context) error {
	var prev []fingerprintEntry
	first := true

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cur, err := fingerprint(w.root)
		if err != nil {
			return err
		}
		if !first && fingerprintEqual(prev, cur) {
			return nil
		}
		first = false
		prev = cur
		w.clk.Sleep(w.interval)
	}
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package loader implements the client's background tree/content
// reloader: on invalidation it refetches the whole remote attribute
// tree, installs it wholesale, then opportunistically prereads files
// matching a configured set of glob patterns, in the idiom of the
// transport/cache packages it drives.
package loader

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"syscall"
	"time"

	"github.com/dsiroky/rewofs/internal/cache"
	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/wire"
)

// TreeTimeout bounds the bulk tree-read command; longer than the
// default single-op timeout since the server walks the whole
// directory before replying.
const TreeTimeout = 2 * time.Minute

// PreloadBudget caps how many bytes of each matched file are preread
// per invalidation cycle, so one huge matched file cannot starve the
// interactive request queues of network time. The cap applies to every
// file separately; bytes of a file beyond it are not preread.
const PreloadBudget = 1 * 1024 * 1024

// BackgroundLoader waits for Invalidate calls and, for each one,
// reloads the cache's tree and prereads files matching Patterns.
type BackgroundLoader struct {
	ser      *transport.Serializer
	deser    *transport.Deserializer
	cache    *cache.Cache
	logger   *slog.Logger
	patterns []string

	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
}

// New creates a loader that reloads c via ser/deser when invalidated.
// patterns are path.Match glob patterns (matched against the full
// path) selecting which files get opportunistically preread.
func New(ser *transport.Serializer, deser *transport.Deserializer, c *cache.Cache, patterns []string, logger *slog.Logger) *BackgroundLoader {
	l := &BackgroundLoader{ser: ser, deser: deser, cache: c, patterns: patterns, logger: logger}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Invalidate schedules a reload. Multiple invalidations before the
// loader gets to run coalesce into a single reload cycle.
func (l *BackgroundLoader) Invalidate() {
	l.mu.Lock()
	l.pending = true
	l.cond.Signal()
	l.mu.Unlock()
}

// Run processes invalidations until ctx is done.
func (l *BackgroundLoader) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		for !l.pending && ctx.Err() == nil {
			l.cond.Wait()
		}
		if ctx.Err() != nil {
			l.mu.Unlock()
			return nil
		}
		l.pending = false
		l.mu.Unlock()

		l.reloadOnce(ctx)
	}
}

func (l *BackgroundLoader) reloadOnce(ctx context.Context) {
	result, err := transport.Call[wire.TreeResult](ctx, l.ser, l.deser, transport.PriorityBackground, wire.KindReadTreeCommand, wire.ReadTreeCommand{Path: "/"}, TreeTimeout, wire.KindTreeResult)
	if err != nil {
		l.logger.Error("loading remote tree", "error", err)
		return
	}
	if result.Errno != 0 {
		l.logger.Error("loading remote tree", "error", rerr.Kind(result.Errno))
		return
	}

	l.cache.Lock()
	l.cache.Tree().Reset()
	populate(l.cache.Tree().Root(), result.Root)
	l.cache.Content().Reset()
	l.cache.Unlock()

	l.preread(ctx)
}

func populate(node *cache.Node, tn wire.TreeNode) {
	node.Attr = tn.Attr
	for _, childNode := range tn.Children {
		child := &cache.Node{Name: childNode.Name, Children: make(map[string]*cache.Node)}
		node.Children[childNode.Name] = child
		populate(child, childNode)
	}
}

// matchCandidate is one file selected for preread.
type matchCandidate struct {
	path string
	size int64
}

func (l *BackgroundLoader) collectMatches() []matchCandidate {
	l.cache.Lock()
	defer l.cache.Unlock()

	var matches []matchCandidate
	var walk func(p string, node *cache.Node)
	walk = func(p string, node *cache.Node) {
		for name, child := range node.Children {
			childPath := path.Join(p, name)
			if isDir(child) {
				walk(childPath, child)
				continue
			}
			if l.matches(childPath) {
				matches = append(matches, matchCandidate{path: childPath, size: child.Attr.Size})
			}
		}
	}
	walk("/", l.cache.Tree().Root())
	return matches
}

func isDir(n *cache.Node) bool {
	return n.Attr.Mode&syscall.S_IFMT == syscall.S_IFDIR
}

func (l *BackgroundLoader) matches(p string) bool {
	for _, pattern := range l.patterns {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func (l *BackgroundLoader) preread(ctx context.Context) {
	for _, m := range l.collectMatches() {
		if err := l.prereadFile(ctx, m.path, m.size); err != nil {
			l.logger.Error("preread", "path", m.path, "error", err)
		}
	}
}

func (l *BackgroundLoader) prereadFile(ctx context.Context, path string, size int64) error {
	q := l.ser.NewQueue(transport.PriorityBackground)
	defer q.Close()

	var budgetUsed int64
	for offset := int64(0); offset < size; {
		if budgetUsed >= PreloadBudget {
			break
		}
		chunk := int64(wire.FragmentSize)
		if remaining := size - offset; chunk > remaining {
			chunk = remaining
		}

		id, err := q.Add(wire.KindPrereadCommand, wire.PrereadCommand{Path: path, Offset: offset, Size: uint32(chunk)})
		if err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, transport.DefaultTimeout)
		result, err := transport.WaitForResult[wire.PrereadResult](callCtx, l.deser, id, wire.KindPrereadResult)
		cancel()
		if err != nil {
			return err
		}
		if result.Errno != 0 {
			return rerr.New(rerr.Kind(result.Errno), path)
		}

		l.cache.Lock()
		l.cache.Content().Write(path, offset, result.Data)
		l.cache.Unlock()

		offset += chunk
		budgetUsed += chunk
	}
	return nil
}

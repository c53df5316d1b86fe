// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import "sync"

// Cache guards a Tree and a Content store behind one mutex. Lock/Unlock
// let a caller (a CachedVfs method) hold the lock across several
// tree/content calls and release it around a blocking remote call.
type Cache struct {
	mu      sync.Mutex
	tree    *Tree
	content *Content
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{tree: NewTree(), content: NewContent()}
}

func (c *Cache) Lock()   { c.mu.Lock() }
func (c *Cache) Unlock() { c.mu.Unlock() }

// Tree returns the tree store. Callers must hold the lock.
func (c *Cache) Tree() *Tree { return c.tree }

// Content returns the content store. Callers must hold the lock.
func (c *Cache) Content() *Content { return c.content }

// Reset drops the whole tree and every cached block, locking
// internally.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Reset()
	c.content.Reset()
}

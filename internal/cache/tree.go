// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache holds the client-side metadata tree and content-block
// store: the two structures a CachedVfs consults before going to the
// network, using Go maps and slices, with exchange and block-coalescing
// writes.
package cache

import (
	"path"
	"strings"

	"github.com/dsiroky/rewofs/internal/rerr"
	"github.com/dsiroky/rewofs/internal/wire"
)

// Node is one entry of the attribute tree. The root node's Name is
// "/"; every other node's Name is its final path component.
type Node struct {
	Name     string
	Attr     wire.Attr
	Children map[string]*Node
}

func newNode(name string) *Node {
	return &Node{Name: name, Children: make(map[string]*Node)}
}

// Tree is the client's local mirror of the remote directory's
// metadata, keyed by path. Callers are expected to hold Cache's lock
// for the duration of any sequence of calls that must appear atomic.
type Tree struct {
	root *Node
}

// NewTree creates a tree with just the root node.
func NewTree() *Tree {
	return &Tree{root: newNode("/")}
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Reset drops every child of root, leaving an empty tree.
func (t *Tree) Reset() {
	t.root.Children = make(map[string]*Node)
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// isAncestorOrEqual reports whether a is b, or an ancestor directory
// of b.
func isAncestorOrEqual(a, b string) bool {
	if a == "/" || a == b {
		return true
	}
	return strings.HasPrefix(b, a+"/")
}

// GetNode walks from the root to path, failing "not found" at the
// first missing component.
func (t *Tree) GetNode(p string) (*Node, error) {
	if p == "/" {
		return t.root, nil
	}
	node := t.root
	for _, comp := range splitPath(p) {
		child, ok := node.Children[comp]
		if !ok {
			return nil, rerr.New(rerr.KindNotFound, p)
		}
		node = child
	}
	return node, nil
}

// MakeNode inserts a new empty node at path. Fails "exists" for root
// or if a child with that name already exists; fails "not found" if
// the parent directory does not exist.
func (t *Tree) MakeNode(p string) (*Node, error) {
	if p == "/" {
		return nil, rerr.New(rerr.KindExists, p)
	}
	parent, err := t.GetNode(path.Dir(p))
	if err != nil {
		return nil, err
	}
	name := path.Base(p)
	if _, exists := parent.Children[name]; exists {
		return nil, rerr.New(rerr.KindExists, p)
	}
	node := newNode(name)
	parent.Children[name] = node
	return node, nil
}

// RemoveSingle removes the node at path only if it has no children.
// Fails "access denied" for root, "not found" if missing, "not empty"
// if it has children.
func (t *Tree) RemoveSingle(p string) error {
	if p == "/" {
		return rerr.New(rerr.KindAccessDenied, p)
	}
	parent, err := t.GetNode(path.Dir(p))
	if err != nil {
		return err
	}
	name := path.Base(p)
	child, ok := parent.Children[name]
	if !ok {
		return rerr.New(rerr.KindNotFound, p)
	}
	if len(child.Children) > 0 {
		return rerr.New(rerr.KindNotEmpty, p)
	}
	delete(parent.Children, name)
	return nil
}

// Rename moves the node at from to to. Fails "exists" if from or to is
// root, or if to already exists; fails "not found" if from does not
// exist.
func (t *Tree) Rename(from, to string) error {
	if from == "/" || to == "/" {
		return rerr.New(rerr.KindExists, to)
	}

	parentFrom, err := t.GetNode(path.Dir(from))
	if err != nil {
		return err
	}
	nameFrom := path.Base(from)
	node, ok := parentFrom.Children[nameFrom]
	if !ok {
		return rerr.New(rerr.KindNotFound, from)
	}

	parentTo, err := t.GetNode(path.Dir(to))
	if err != nil {
		return err
	}
	nameTo := path.Base(to)
	if _, exists := parentTo.Children[nameTo]; exists {
		return rerr.New(rerr.KindExists, to)
	}

	delete(parentFrom.Children, nameFrom)
	node.Name = nameTo
	parentTo.Children[nameTo] = node
	return nil
}

// Exchange swaps the attribute record and children of the two nodes
// at path1 and path2, leaving both in place under their existing
// names. Fails "invalid" if either path is an ancestor of (or equal
// to) the other, which would otherwise make a node its own
// descendant.
func (t *Tree) Exchange(path1, path2 string) error {
	if isAncestorOrEqual(path1, path2) || isAncestorOrEqual(path2, path1) {
		return rerr.New(rerr.KindInvalid, path1)
	}

	node1, err := t.GetNode(path1)
	if err != nil {
		return err
	}
	node2, err := t.GetNode(path2)
	if err != nil {
		return err
	}

	node1.Attr, node2.Attr = node2.Attr, node1.Attr
	node1.Children, node2.Children = node2.Children, node1.Children
	return nil
}

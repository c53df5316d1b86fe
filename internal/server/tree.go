// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/dsiroky/rewofs/internal/wire"
)

// maxTreeDepth bounds the recursive tree-read walk, guarding against
// loops introduced by e.g. a bind-mounted ancestor.
const maxTreeDepth = 128

// buildTree recursively walks hostPath and produces the nested
// attribute tree the bulk read-tree command returns in one response.
// A lstat failure on a child produces a zero Attr rather than
// aborting the whole walk, so one bad entry never hides its siblings.
func buildTree(hostPath string, depth int) wire.TreeNode {
	node := wire.TreeNode{Name: filepath.Base(hostPath)}

	attr, err := lstatAttr(hostPath)
	if err != nil {
		return node
	}
	node.Attr = attr

	if depth >= maxTreeDepth {
		return node
	}
	if attr.Mode&syscall.S_IFMT != syscall.S_IFDIR {
		return node
	}

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		return node
	}
	for _, e := range entries {
		child := buildTree(filepath.Join(hostPath, e.Name()), depth+1)
		node.Children = append(node.Children, child)
	}
	return node
}

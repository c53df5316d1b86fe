// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package kbridge

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dsiroky/rewofs/internal/vfs"
)

// DefaultEntryTimeout and DefaultAttrTimeout bound how long the
// kernel trusts a Lookup/Getattr result before asking again. Short,
// because a watcher-driven cache invalidation on the client side has
// no way to push into the kernel's own cache otherwise.
const (
	DefaultEntryTimeout = time.Second
	DefaultAttrTimeout  = time.Second
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not already exist.
	Mountpoint string

	// Vfs is the single capability object every Node forwards to.
	Vfs vfs.Vfs

	// AllowOther permits other users, including root, to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a logger that writes
	// only error-level messages to stderr is used.
	Logger *slog.Logger
}

// Mount mounts the filesystem at the configured mountpoint. The
// caller must call Unmount (or Serve/Wait) on the returned Server
// when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Vfs == nil {
		return nil, fmt.Errorf("vfs is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &Node{vfs: options.Vfs, logger: options.Logger}

	entryTimeout := DefaultEntryTimeout
	attrTimeout := DefaultAttrTimeout

	server, err := fs.Mount(options.Mountpoint, root, &fs.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "rewofs",
			Name:       "rewofs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("rewofs mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

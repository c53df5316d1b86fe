// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package config parses the rewofs binary's command-line flags into a
// validated Config. There is no file-based configuration surface.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dsiroky/rewofs/internal/heartbeat"
	"github.com/dsiroky/rewofs/internal/server"
)

// Mode selects which half of the protocol a process runs.
type Mode string

const (
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

// Config is the fully parsed, validated set of flags for one run of
// the rewofs binary.
type Config struct {
	Mode Mode

	// Server mode.
	ServeDir   string
	ListenURI  string
	NumWorkers int

	// Client mode.
	Mountpoint      string
	ConnectURI      string
	AllowOther      bool
	PreloadPatterns []string

	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
}

// Parse parses args (normally os.Args[1:]) into a Config, returning an
// error for missing/conflicting flags rather than exiting the process.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("rewofs", flag.ContinueOnError)

	serveDir := fs.String("serve", "", "run in server mode, exporting this directory")
	listen := fs.String("listen", "", "server mode: endpoint to listen on (tcp://host:port or unix:///path)")
	numWorkers := fs.Int("workers", server.DefaultNumWorkers, "server mode: number of worker goroutines")

	mountpoint := fs.String("mountpoint", "", "run in client mode, mounting the remote filesystem here")
	connect := fs.String("connect", "", "client mode: endpoint to connect to (tcp://host:port or unix:///path)")
	allowOther := fs.Bool("allow-other", false, "client mode: allow other users to access the mount")
	preload := fs.String("preload", "", "client mode: comma-separated glob patterns to preread after every reload")

	heartbeatPeriod := fs.Duration("heartbeat-period", heartbeat.DefaultPeriod, "client mode: interval between liveness pings")
	heartbeatTimeout := fs.Duration("heartbeat-timeout", 3*time.Second, "client mode: time to wait for a pong before declaring the connection down")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServeDir:         *serveDir,
		ListenURI:        *listen,
		NumWorkers:       *numWorkers,
		Mountpoint:       *mountpoint,
		ConnectURI:       *connect,
		AllowOther:       *allowOther,
		HeartbeatPeriod:  *heartbeatPeriod,
		HeartbeatTimeout: *heartbeatTimeout,
	}
	if *preload != "" {
		cfg.PreloadPatterns = strings.Split(*preload, ",")
	}

	switch {
	case *serveDir != "" && *mountpoint != "":
		return Config{}, fmt.Errorf("--serve and --mountpoint are mutually exclusive")
	case *serveDir != "":
		cfg.Mode = ModeServer
		if *listen == "" {
			return Config{}, fmt.Errorf("--listen is required with --serve")
		}
	case *mountpoint != "":
		cfg.Mode = ModeClient
		if *connect == "" {
			return Config{}, fmt.Errorf("--connect is required with --mountpoint")
		}
	default:
		return Config{}, fmt.Errorf("either --serve <dir> --listen <endpoint> or --mountpoint <dir> --connect <endpoint> is required")
	}

	return cfg, nil
}

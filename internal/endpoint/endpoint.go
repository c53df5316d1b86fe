// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint parses the URI the CLI accepts for --listen and
// --connect into the network+address pair net.Dial and net.Listen
// expect. It is a thin adapter, not a new transport: both schemes
// produce a single bidirectional byte stream.
package endpoint

import (
	"fmt"
	"strings"
)

// Endpoint is a resolved dial/listen target.
type Endpoint struct {
	// Network is "tcp" or "unix", suitable for net.Dial/net.Listen.
	Network string
	// Address is the host:port or socket path.
	Address string
}

// Parse accepts "tcp://host:port" or "unix:///path/to/socket".
func Parse(uri string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(uri, "tcp://"):
		addr := strings.TrimPrefix(uri, "tcp://")
		if addr == "" {
			return Endpoint{}, fmt.Errorf("endpoint: tcp:// URI missing host:port")
		}
		return Endpoint{Network: "tcp", Address: addr}, nil

	case strings.HasPrefix(uri, "unix://"):
		path := strings.TrimPrefix(uri, "unix://")
		if path == "" {
			return Endpoint{}, fmt.Errorf("endpoint: unix:// URI missing path")
		}
		return Endpoint{Network: "unix", Address: path}, nil

	default:
		return Endpoint{}, fmt.Errorf("endpoint: unrecognized scheme in %q, want tcp:// or unix://", uri)
	}
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Network, e.Address)
}

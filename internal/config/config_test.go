// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package config

import "testing"

func TestParseServerMode(t *testing.T) {
	cfg, err := Parse([]string{"--serve", "/data", "--listen", "tcp://0.0.0.0:9000"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mode != ModeServer || cfg.ServeDir != "/data" || cfg.ListenURI != "tcp://0.0.0.0:9000" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestParseClientMode(t *testing.T) {
	cfg, err := Parse([]string{"--mountpoint", "/mnt", "--connect", "unix:///tmp/rewofs.sock", "--preload", "*.go,*.md"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Mode != ModeClient || cfg.Mountpoint != "/mnt" || cfg.ConnectURI != "unix:///tmp/rewofs.sock" {
		t.Fatalf("got %+v", cfg)
	}
	if len(cfg.PreloadPatterns) != 2 || cfg.PreloadPatterns[0] != "*.go" {
		t.Fatalf("got patterns %v", cfg.PreloadPatterns)
	}
}

func TestParseRejectsNeitherModeSelected(t *testing.T) {
	if _, err := Parse([]string{}); err == nil {
		t.Fatal("expected an error when neither --serve nor --mountpoint is given")
	}
}

func TestParseRejectsBothModesSelected(t *testing.T) {
	_, err := Parse([]string{"--serve", "/data", "--listen", "tcp://x:1", "--mountpoint", "/mnt", "--connect", "tcp://x:1"})
	if err == nil {
		t.Fatal("expected an error when both --serve and --mountpoint are given")
	}
}

func TestParseRequiresListenWithServe(t *testing.T) {
	if _, err := Parse([]string{"--serve", "/data"}); err == nil {
		t.Fatal("expected an error when --listen is missing")
	}
}

func TestParseRequiresConnectWithMountpoint(t *testing.T) {
	if _, err := Parse([]string{"--mountpoint", "/mnt"}); err == nil {
		t.Fatal("expected an error when --connect is missing")
	}
}

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsiroky/rewofs/internal/wire"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRenameUnconditionalOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a")
	to := filepath.Join(dir, "b")
	writeFile(t, from, "A")
	writeFile(t, to, "B")

	if err := renameWithFlags(from, to, wire.RenameNone); err != nil {
		t.Fatalf("rename: %v", err)
	}
	data, err := os.ReadFile(to)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "A" {
		t.Fatalf("got %q, want A", data)
	}
	if _, err := os.Lstat(from); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be gone", from)
	}
}

func TestRenameNoReplaceFailsWhenTargetExists(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a")
	to := filepath.Join(dir, "b")
	writeFile(t, from, "A")
	writeFile(t, to, "B")

	err := renameWithFlags(from, to, wire.RenameNoReplace)
	if err == nil {
		t.Fatal("expected an error when the target already exists")
	}
}

func TestRenameNoReplaceSucceedsWhenTargetMissing(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a")
	to := filepath.Join(dir, "b")
	writeFile(t, from, "A")

	if err := renameWithFlags(from, to, wire.RenameNoReplace); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := os.Lstat(to); err != nil {
		t.Fatalf("expected %s to exist: %v", to, err)
	}
}

func TestRenameExchangeSwapsContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "A")
	writeFile(t, b, "B")

	if err := renameWithFlags(a, b, wire.RenameExchange); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	dataA, err := os.ReadFile(a)
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	dataB, err := os.ReadFile(b)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if string(dataA) != "B" || string(dataB) != "A" {
		t.Fatalf("got a=%q b=%q, want a=B b=A", dataA, dataB)
	}
}

func TestRenameExchangeEmulatedSwapsContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, "A")
	writeFile(t, b, "B")

	if err := renameExchangeEmulated(a, b); err != nil {
		t.Fatalf("emulated exchange: %v", err)
	}

	dataA, err := os.ReadFile(a)
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	dataB, err := os.ReadFile(b)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if string(dataA) != "B" || string(dataB) != "A" {
		t.Fatalf("got a=%q b=%q, want a=B b=A", dataA, dataB)
	}
}

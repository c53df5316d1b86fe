// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec wraps CBOR encoding so the rest of the module never
// imports fxamacker/cbor directly. Wire payloads use CBOR's core
// deterministic encoding: sorted map keys and smallest-width integers,
// which gives frame round-tripping for free.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// rewofs messages never use non-string map keys; pin the
		// any-typed decode target to map[string]any for compatibility
		// with ordinary Go code (the CBOR default would be
		// map[interface{}]interface{}).
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using core deterministic CBOR encoding.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// Encoder is a CBOR stream encoder, aliased so callers only import
// this package.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage delays or pre-encodes a CBOR value.
type RawMessage = cbor.RawMessage

// NewEncoder returns an encoder using the module's standard encoding
// configuration.
func NewEncoder(w io.Writer) *Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a decoder using the module's standard decoding
// configuration.
func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }

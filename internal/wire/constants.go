// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// FragmentSize bounds a single read/write/preread chunk sent over the
// wire; callers fragment larger requests into pieces this size.
const FragmentSize = 32 * 1024

// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Kind tags the payload carried by a Frame. The payload set is closed:
// Ping/Pong, ReadTree/TreeResult, one Command per filesystem operation
// with its Result (the shared ErrnoResult for operations that report
// only success or failure), Preread/PrereadResult (server-side bulk
// preload), and the NotifyChanged notification.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindPing
	KindPong

	KindReadTreeCommand
	KindTreeResult

	KindStatCommand
	KindStatResult

	KindReaddirCommand
	KindReaddirResult

	KindReadlinkCommand
	KindReadlinkResult

	KindMkdirCommand
	KindRmdirCommand
	KindUnlinkCommand
	KindSymlinkCommand
	KindRenameCommand
	KindChmodCommand
	KindUtimensCommand
	KindTruncateCommand
	KindCloseCommand
	// ErrnoResult answers every Command above that only needs to report
	// success or a failure kind.
	KindErrnoResult

	KindOpenCommand
	KindOpenResult

	KindReadCommand
	KindReadResult

	KindWriteCommand
	KindWriteResult

	KindPrereadCommand
	KindPrereadResult

	KindNotifyChanged
)

// IsResult reports whether k is ever carried by a reply frame matched
// back to a caller by correlation ID, as opposed to a command consumed
// by a kind-registered handler or a one-way push like NotifyChanged.
func (k Kind) IsResult() bool {
	switch k {
	case KindPong, KindTreeResult, KindStatResult, KindReaddirResult, KindReadlinkResult,
		KindErrnoResult, KindOpenResult, KindReadResult, KindWriteResult, KindPrereadResult:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindReadTreeCommand:
		return "read-tree"
	case KindTreeResult:
		return "tree-result"
	case KindStatCommand:
		return "stat"
	case KindStatResult:
		return "stat-result"
	case KindReaddirCommand:
		return "readdir"
	case KindReaddirResult:
		return "readdir-result"
	case KindReadlinkCommand:
		return "readlink"
	case KindReadlinkResult:
		return "readlink-result"
	case KindMkdirCommand:
		return "mkdir"
	case KindRmdirCommand:
		return "rmdir"
	case KindUnlinkCommand:
		return "unlink"
	case KindSymlinkCommand:
		return "symlink"
	case KindRenameCommand:
		return "rename"
	case KindChmodCommand:
		return "chmod"
	case KindUtimensCommand:
		return "utimens"
	case KindTruncateCommand:
		return "truncate"
	case KindCloseCommand:
		return "close"
	case KindErrnoResult:
		return "errno-result"
	case KindOpenCommand:
		return "open"
	case KindOpenResult:
		return "open-result"
	case KindReadCommand:
		return "read"
	case KindReadResult:
		return "read-result"
	case KindWriteCommand:
		return "write"
	case KindWriteResult:
		return "write-result"
	case KindPrereadCommand:
		return "preread"
	case KindPrereadResult:
		return "preread-result"
	case KindNotifyChanged:
		return "notify-changed"
	default:
		return "invalid"
	}
}

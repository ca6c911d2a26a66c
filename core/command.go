package core

import (
	"context"
	"time"

	"github.com/tidwall/sjson"
)

// GetMore requests the next batch from an open peer cursor. MaxTime is
// forwarded verbatim as the command's maxTimeMS and is only meaningful for
// tailable awaitData cursors, where it bounds how long the peer may block
// waiting for new data.
type GetMore struct {
	CursorID  int64
	Namespace string
	BatchSize int64
	MaxTime   time.Duration
}

// Encode renders the command as JSON.
func (g GetMore) Encode() []byte {
	cmd, _ := sjson.SetBytes([]byte(`{}`), "getMore", g.CursorID)
	cmd, _ = sjson.SetBytes(cmd, "collection", g.Namespace)
	if g.BatchSize > 0 {
		cmd, _ = sjson.SetBytes(cmd, "batchSize", g.BatchSize)
	}
	if g.MaxTime > 0 {
		cmd, _ = sjson.SetBytes(cmd, "maxTimeMS", g.MaxTime.Milliseconds())
	}
	return cmd
}

// KillCursors tells a peer to destroy the given cursors. It is fired best
// effort during merge teardown; replies are ignored.
type KillCursors struct {
	Namespace string
	CursorIDs []int64
}

// Encode renders the command as JSON.
func (k KillCursors) Encode() []byte {
	cmd, _ := sjson.SetBytes([]byte(`{}`), "killCursors", k.Namespace)
	cmd, _ = sjson.SetBytes(cmd, "cursors", k.CursorIDs)
	return cmd
}

// ReleaseMemory asks a peer to release memory pinned by idle cursors without
// closing them. Failures are tolerable: the command is an optimization, never
// a correctness requirement.
type ReleaseMemory struct {
	Namespace string
	CursorIDs []int64
}

// Encode renders the command as JSON.
func (r ReleaseMemory) Encode() []byte {
	cmd, _ := sjson.SetBytes([]byte(`{}`), "releaseMemory", r.Namespace)
	cmd, _ = sjson.SetBytes(cmd, "cursors", r.CursorIDs)
	return cmd
}

// CommandHandle identifies one scheduled remote command so it can be
// canceled. Handles are opaque and unique per scheduled command.
type CommandHandle string

// ResponseCallback receives the outcome of one scheduled command: the raw
// peer reply, or a non-nil error (network failure, timeout, cancellation).
// It is invoked exactly once, on a scheduler worker goroutine.
type ResponseCallback func(reply []byte, err error)

// Scheduler is the asynchronous command-dispatch collaborator the merge
// engine builds on. Implementations own all networking; the engine never
// blocks on I/O itself.
//
// Contract:
//   - ScheduleRemoteCommand returns immediately after enqueueing the send.
//   - The callback runs exactly once per successfully scheduled command, on
//     a scheduler goroutine. It is never invoked synchronously from
//     ScheduleRemoteCommand or Cancel; callers may hold locks across both.
//   - Cancel guarantees prompt callback delivery with ErrCallbackCanceled if
//     the command had not already completed; canceling an unknown or
//     finished handle is a no-op.
type Scheduler interface {
	ScheduleRemoteCommand(ctx context.Context, addr string, cmd []byte, cb ResponseCallback) (CommandHandle, error)
	Cancel(handle CommandHandle)
}

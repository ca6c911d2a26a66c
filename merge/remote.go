package merge

import (
	"github.com/tidwall/gjson"

	"github.com/drossix/shardmerge/core"
)

// remoteCursor is the engine's record for one peer cursor. Records live in a
// dense slice owned by the Merger and are addressed by their stable index;
// they are flagged closed or exhausted but never removed, so indexes held by
// the merge queue, the round-robin cursor and in-flight callbacks stay valid
// for the life of the merge.
//
// All fields are guarded by the Merger's mutex.
type remoteCursor struct {
	// index is the monotonically assigned local identifier, used only to
	// break sort-key ties deterministically.
	index int

	peerID    string
	addr      string
	namespace string

	// cursorID is the remote cursor id. Zero means the peer declared the
	// cursor exhausted and will never be contacted again.
	cursorID int64

	// buffer holds documents received but not yet returned, FIFO.
	buffer []core.Document

	// status is the peer's sticky error. Once set it is never cleared.
	status error

	// promisedMinSortKey is the peer's guarantee that no future document
	// from it will sort below this value. Only tracked for sorted tailable
	// awaitData streams.
	promisedMinSortKey gjson.Result
	hasPromisedKey     bool

	closed         bool // removed by the caller via CloseShardCursors
	invalidated    bool // cursor known dead on the peer
	partialResults bool // peer dropped out under partial-results tolerance

	// pendingGetMore / pendingRelease hold the handle of the outstanding
	// command of each kind; at most one of each may be in flight per peer.
	pendingGetMore core.CommandHandle
	pendingRelease core.CommandHandle
}

func newRemoteCursor(index int, spec core.RemoteCursorSpec) *remoteCursor {
	r := &remoteCursor{
		index:     index,
		peerID:    spec.PeerID,
		addr:      spec.Addr,
		namespace: spec.Namespace,
		cursorID:  spec.CursorID,
	}
	if len(spec.FirstBatch) > 0 {
		r.buffer = append(r.buffer, spec.FirstBatch...)
	}
	return r
}

// hasNext reports whether the record has a buffered, not-yet-returned document.
func (r *remoteCursor) hasNext() bool { return len(r.buffer) > 0 }

// exhausted reports whether the peer-side cursor is gone for good.
func (r *remoteCursor) exhausted() bool { return r.cursorID == 0 }

// finished reports whether no further documents can ever arrive from this
// peer: it is exhausted, was closed by the caller, or carries a sticky error.
// Buffered documents of a finished peer are still drained normally.
func (r *remoteCursor) finished() bool {
	return r.exhausted() || r.closed || r.invalidated || r.status != nil
}

// eligibleForGetMore reports whether the engine may schedule a getMore on
// this peer: no sticky error, no pending getMore, empty buffer and a live
// cursor.
func (r *remoteCursor) eligibleForGetMore() bool {
	return !r.finished() && !r.hasNext() && r.pendingGetMore == ""
}

// front returns the sort key of the first buffered document. Only meaningful
// when hasNext holds.
func (r *remoteCursor) front() gjson.Result {
	key, _ := r.buffer[0].SortKey()
	return key
}

// popFront removes and returns the first buffered document.
func (r *remoteCursor) popFront() core.Document {
	doc := r.buffer[0]
	r.buffer = r.buffer[1:]
	return doc
}

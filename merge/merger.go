package merge

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/drossix/shardmerge/core"
	"github.com/drossix/shardmerge/logging"
)

// Params is the immutable configuration of one merge operation.
type Params struct {
	// Sort is the requested sort specification; empty means arrival order.
	Sort core.Sort

	// CompareWholeSortKey indicates the materialized sort key is a single
	// bare scalar rather than an array of components. Requires a
	// single-field Sort.
	CompareWholeSortKey bool

	// AllowPartialResults tolerates unreachable peers: a failed peer is
	// dropped from the merge instead of poisoning it.
	AllowPartialResults bool

	// Tailable selects the stream mode. A sorted merge requires
	// TailableNone or TailableAwaitData.
	Tailable core.TailableMode

	// BatchSize is forwarded to peers as the getMore batch size hint.
	// Zero leaves the choice to the peer.
	BatchSize int64

	// Remotes is the initial peer cursor set.
	Remotes []core.RemoteCursorSpec
}

func (p Params) validate() error {
	if p.CompareWholeSortKey && len(p.Sort) != 1 {
		return fmt.Errorf("compareWholeSortKey requires a single-field sort, got %d fields", len(p.Sort))
	}
	if p.Sort.IsSorted() && p.Tailable == core.Tailable {
		return fmt.Errorf("a sorted merge supports tailable mode %q or %q only",
			core.TailableNone, core.TailableAwaitData)
	}
	return nil
}

// Options configures a Merger instance.
type Options struct {
	// Logger receives scheduling and lifecycle diagnostics. Defaults to the
	// no-op logger.
	Logger logging.Logger
}

type lifecycleState int

const (
	aliveState lifecycleState = iota
	killStartedState
	killCompleteState
)

// Merger merges the result streams of multiple remote peer cursors. It is a
// passive state machine: every method returns without blocking on I/O, and
// all mutable state is guarded by a single mutex shared with the scheduler
// callbacks. See the package documentation for the driving protocol.
type Merger struct {
	sched  core.Scheduler
	params Params
	log    logging.Logger

	mu sync.Mutex

	// opCtx is the current operation context, threaded into every scheduled
	// command. Detach/Reattach swap it with no other side effects.
	opCtx    context.Context
	detached bool

	remotes []*remoteCursor
	queue   mergeQueue

	// rrIndex is the rotating start position for unsorted round-robin
	// consumption.
	rrIndex int

	// nextEvent is the single live wait handle, nil when none is
	// outstanding. It is invalidated (set nil) when signaled.
	nextEvent *readyEvent

	// status is the engine-fatal sticky error. Once set it is never
	// cleared and NextReady surfaces it instead of documents.
	status error

	// emptyBatchPending marks that a tailable getMore round returned no
	// documents, so an empty placeholder result should be produced.
	emptyBatchPending bool

	// highWaterMark is the lowest sort key guaranteed not to be undercut by
	// any future result from any peer. Monotonically non-decreasing.
	highWaterMark gjson.Result
	hasHWM        bool
	emittedHWM    gjson.Result
	hasEmittedHWM bool

	awaitDataTimeout time.Duration

	lifecycle   lifecycleState
	killFuture  chan struct{}
	outstanding int // in-flight command callbacks not yet drained

	metrics Metrics
}

// New constructs a Merger over the given scheduler and initial peer set. The
// context is the operation context threaded into every scheduled command; it
// can later be swapped via DetachFromOperationContext and
// ReattachToOperationContext.
func New(ctx context.Context, sched core.Scheduler, params Params, optFns ...func(*Options)) (*Merger, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Merger{
		sched:  sched,
		params: params,
		log:    opts.Logger,
		opCtx:  ctx,
		queue:  mergeQueue{sort: params.Sort, wholeKey: params.CompareWholeSortKey},
	}
	for _, spec := range params.Remotes {
		m.addRemoteLocked(spec)
	}
	m.updateHighWaterMarkLocked()

	return m, nil
}

func (m *Merger) addRemoteLocked(spec core.RemoteCursorSpec) {
	r := newRemoteCursor(len(m.remotes), spec)
	m.remotes = append(m.remotes, r)
	if m.params.Sort.IsSorted() && r.hasNext() {
		heap.Push(&m.queue, r)
	}
}

// Ready reports whether NextReady can produce a result without further
// scheduling work.
func (m *Merger) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyLocked()
}

func (m *Merger) readyLocked() bool {
	if m.lifecycle != aliveState || m.status != nil {
		return true
	}
	if m.params.Sort.IsSorted() {
		return m.readySortedLocked()
	}
	return m.readyUnsortedLocked()
}

func (m *Merger) readyUnsortedLocked() bool {
	for _, r := range m.remotes {
		if r.hasNext() {
			return true
		}
	}
	if m.allFinishedLocked() {
		return true
	}
	return m.params.Tailable != core.TailableNone && m.emptyBatchPending
}

func (m *Merger) readySortedLocked() bool {
	if m.params.Tailable == core.TailableAwaitData {
		return m.readySortedTailableLocked()
	}
	// The true minimum across peers is only knowable once every unfinished
	// peer has a buffered document. Vacuously true at exhaustion, which is
	// the end-of-stream case.
	for _, r := range m.remotes {
		if !r.hasNext() && !r.finished() {
			return false
		}
	}
	return true
}

func (m *Merger) readySortedTailableLocked() bool {
	if m.queue.Len() > 0 {
		if m.safeToReturnTopLocked() {
			return true
		}
	} else if m.allFinishedLocked() {
		return true
	}
	return m.hwmAdvancedLocked()
}

// safeToReturnTopLocked reports whether the smallest buffered document can be
// emitted without risking a future undercut: every unfinished peer with an
// empty buffer must have promised a minimum sort key no smaller than it.
func (m *Merger) safeToReturnTopLocked() bool {
	topKey := m.queue.peek().front()
	for _, r := range m.remotes {
		if r.hasNext() || r.finished() {
			continue
		}
		if !r.hasPromisedKey {
			return false
		}
		if core.CompareSortKeys(r.promisedMinSortKey, topKey, m.params.Sort, m.params.CompareWholeSortKey) < 0 {
			return false
		}
	}
	return true
}

func (m *Merger) allFinishedLocked() bool {
	for _, r := range m.remotes {
		if !r.finished() {
			return false
		}
	}
	return true
}

// NextReady pops one result. It is only valid when Ready reports true;
// calling it otherwise returns core.ErrNotReady. The result is a document,
// an empty placeholder ("stream open, nothing yet", tailable streams only),
// or end-of-stream.
func (m *Merger) NextReady() (core.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return core.QueryResult{}, core.ErrKilled
	}
	if !m.readyLocked() {
		return core.QueryResult{}, core.ErrNotReady
	}
	if m.status != nil {
		return core.QueryResult{}, m.status
	}

	if m.params.Sort.IsSorted() {
		return m.nextReadySortedLocked(), nil
	}
	return m.nextReadyUnsortedLocked(), nil
}

func (m *Merger) nextReadySortedLocked() core.QueryResult {
	awaitData := m.params.Tailable == core.TailableAwaitData

	if m.queue.Len() > 0 && (!awaitData || m.safeToReturnTopLocked()) {
		r := heap.Pop(&m.queue).(*remoteCursor)
		doc := r.popFront()
		if r.hasNext() {
			heap.Push(&m.queue, r)
		}
		m.metrics.DocsReturned++
		return core.QueryResult{Doc: doc}
	}

	if m.queue.Len() == 0 && m.allFinishedLocked() {
		return core.QueryResult{EOF: true}
	}

	// Readiness came from an advanced high-water mark: emit the empty
	// placeholder so the caller can keep the stream open and observe the
	// new mark.
	m.emittedHWM = m.highWaterMark
	m.hasEmittedHWM = true
	return core.QueryResult{}
}

func (m *Merger) nextReadyUnsortedLocked() core.QueryResult {
	n := len(m.remotes)
	for i := 0; i < n; i++ {
		r := m.remotes[(m.rrIndex+i)%n]
		if !r.hasNext() {
			continue
		}
		doc := r.popFront()
		m.rrIndex = (m.rrIndex + i + 1) % n
		m.metrics.DocsReturned++
		return core.QueryResult{Doc: doc}
	}

	if m.allFinishedLocked() {
		return core.QueryResult{EOF: true}
	}

	// Tailable stream with an observed empty round.
	m.emptyBatchPending = false
	return core.QueryResult{}
}

// NextEvent schedules a getMore on every eligible peer and returns a wait
// channel that is closed exactly once, when a completion makes the merger
// ready. It is valid only when the merger is not ready and no previous event
// is still outstanding.
func (m *Merger) NextEvent() (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return nil, core.ErrKilled
	}
	if m.nextEvent != nil {
		return nil, core.ErrEventOutstanding
	}
	if m.readyLocked() {
		return nil, core.ErrAlreadyReady
	}
	if err := m.scheduleGetMoresLocked(); err != nil {
		return nil, err
	}

	ev := newReadyEvent()
	m.nextEvent = ev
	// A completion may have poisoned the merger between scheduling calls.
	m.signalIfReadyLocked()
	return ev.ch, nil
}

// ScheduleGetMores issues getMores on every eligible peer without creating a
// wait handle. It is used to reissue work, for example after the merger has
// been reattached to a fresh operation context.
func (m *Merger) ScheduleGetMores() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return core.ErrKilled
	}
	return m.scheduleGetMoresLocked()
}

func (m *Merger) scheduleGetMoresLocked() error {
	if m.detached {
		return core.ErrDetached
	}

	for _, r := range m.remotes {
		if !r.eligibleForGetMore() {
			continue
		}

		cmd := core.GetMore{
			CursorID:  r.cursorID,
			Namespace: r.namespace,
			BatchSize: m.params.BatchSize,
		}
		if m.params.Tailable == core.TailableAwaitData {
			cmd.MaxTime = m.awaitDataTimeout
		}

		index, expectedID := r.index, r.cursorID
		handle, err := m.sched.ScheduleRemoteCommand(m.opCtx, r.addr, cmd.Encode(),
			func(reply []byte, cberr error) {
				m.handleBatchResponse(index, expectedID, reply, cberr)
			})
		if err != nil {
			m.processRemoteErrorLocked(r, err)
			continue
		}

		r.pendingGetMore = handle
		m.outstanding++
		m.metrics.GetMoresScheduled++
		m.log.Debug("scheduled getMore", "peer", r.peerID, "cursorId", expectedID)
	}

	return m.status
}

// handleBatchResponse is the completion callback for one getMore. It runs on
// a scheduler worker goroutine and owns the record only under the mutex.
func (m *Merger) handleBatchResponse(index int, expectedID int64, reply []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.remotes[index]
	r.pendingGetMore = ""
	m.outstanding--

	switch {
	case m.lifecycle != aliveState:
		// Draining after Kill: the result is discarded on arrival.

	case r.closed || r.invalidated:
		// Late completion for a retired peer, typically the canceled
		// getMore of a CloseShardCursors call. Discard.

	case err != nil:
		m.processRemoteErrorLocked(r, err)

	default:
		resp, perr := core.ParseCursorResponse(reply)
		switch {
		case perr != nil:
			m.processRemoteErrorLocked(r, perr)
		case resp.CursorID != 0 && resp.CursorID != expectedID:
			// A mismatched cursor id is a correctness bug, never retried
			// and always fatal for the whole merge.
			mismatch := fmt.Errorf("%w: peer %s returned cursor %d, expected %d",
				core.ErrCursorMismatch, r.peerID, resp.CursorID, expectedID)
			r.status = mismatch
			m.status = mismatch
			m.metrics.RemoteErrors++
		default:
			m.foldBatchLocked(r, resp)
		}
	}

	// A completion that contributed nothing (an empty batch on a live
	// cursor) can leave the merger unready with no completion left to wake
	// it. While a waiter exists, reissue getMores on every eligible peer so
	// the outstanding event is always eventually signaled.
	if m.lifecycle == aliveState && m.nextEvent != nil && !m.readyLocked() {
		_ = m.scheduleGetMoresLocked()
	}

	m.signalIfReadyLocked()
	m.maybeCompleteKillLocked()
}

// processRemoteErrorLocked folds a command failure into the peer's sticky
// status. Under partial-results tolerance the peer is dropped from the merge;
// otherwise the failure poisons the whole merger irreversibly.
func (m *Merger) processRemoteErrorLocked(r *remoteCursor, err error) {
	m.metrics.RemoteErrors++

	if m.params.AllowPartialResults {
		m.log.Warn("peer dropped, returning partial results", "peer", r.peerID, "error", err)
		r.cursorID = 0
		r.partialResults = true
		m.updateHighWaterMarkLocked()
		return
	}

	m.log.Error("peer failed", "peer", r.peerID, "error", err)
	r.status = err
	if m.status == nil {
		m.status = fmt.Errorf("peer %s: %w", r.peerID, err)
	}
}

func (m *Merger) foldBatchLocked(r *remoteCursor, resp core.CursorResponse) {
	m.metrics.BatchesReceived++
	m.metrics.DocsReceived += int64(len(resp.Batch))

	wasEmpty := !r.hasNext()
	r.buffer = append(r.buffer, resp.Batch...)
	r.cursorID = resp.CursorID
	if resp.Partial {
		r.partialResults = true
	}

	if m.params.Sort.IsSorted() && wasEmpty && r.hasNext() {
		heap.Push(&m.queue, r)
	}

	if resp.HasMinSortKey() && m.params.Sort.IsSorted() && m.params.Tailable == core.TailableAwaitData {
		// A peer's promise may only tighten; a regression is ignored.
		if !r.hasPromisedKey || core.CompareSortKeys(resp.MinSortKey, r.promisedMinSortKey,
			m.params.Sort, m.params.CompareWholeSortKey) >= 0 {
			r.promisedMinSortKey = resp.MinSortKey
			r.hasPromisedKey = true
		}
	}

	if m.params.Tailable != core.TailableNone && len(resp.Batch) == 0 && !r.exhausted() {
		m.emptyBatchPending = true
	}

	m.updateHighWaterMarkLocked()
}

// minBoundLocked computes the smallest key any unfinished peer may still
// contribute: its buffered front if it has documents, its promised minimum
// otherwise. The bound is unknown while any such peer has neither.
func (m *Merger) minBoundLocked() (gjson.Result, bool) {
	var min keyBound
	found := false

	for _, r := range m.remotes {
		if r.finished() && !r.hasNext() {
			continue
		}

		var b keyBound
		switch {
		case r.hasNext():
			b = keyBound{key: r.front(), index: r.index}
		case r.hasPromisedKey:
			b = keyBound{key: r.promisedMinSortKey, index: r.index}
		default:
			return gjson.Result{}, false
		}

		if !found || lessBound(b, min, m.params.Sort, m.params.CompareWholeSortKey) {
			min, found = b, true
		}
	}

	return min.key, found
}

// updateHighWaterMarkLocked advances the mark to the current minimum bound.
// The mark never decreases, and no mark advances while any eligible peer has
// yet to supply a bound, since that peer could still produce an older key.
func (m *Merger) updateHighWaterMarkLocked() {
	if !m.params.Sort.IsSorted() || m.params.Tailable != core.TailableAwaitData {
		return
	}

	bound, ok := m.minBoundLocked()
	if !ok {
		return
	}
	if !m.hasHWM || core.CompareSortKeys(bound, m.highWaterMark, m.params.Sort, m.params.CompareWholeSortKey) > 0 {
		m.highWaterMark = bound
		m.hasHWM = true
	}
}

func (m *Merger) hwmAdvancedLocked() bool {
	if !m.hasHWM {
		return false
	}
	if !m.hasEmittedHWM {
		return true
	}
	return core.CompareSortKeys(m.highWaterMark, m.emittedHWM, m.params.Sort, m.params.CompareWholeSortKey) > 0
}

// signalIfReadyLocked completes the outstanding wait handle if the merger has
// become ready. The handle is invalidated before signaling so a subsequent
// NextEvent is permitted immediately.
func (m *Merger) signalIfReadyLocked() {
	if m.nextEvent == nil || !m.readyLocked() {
		return
	}
	ev := m.nextEvent
	m.nextEvent = nil
	ev.signal()
}

// SetAwaitDataTimeout configures how long peers may block a getMore waiting
// for new data. Only valid for tailable awaitData streams.
func (m *Merger) SetAwaitDataTimeout(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.params.Tailable != core.TailableAwaitData {
		return fmt.Errorf("%w: setAwaitDataTimeout on a %s stream", core.ErrTailableRequired, m.params.Tailable)
	}
	if d < 0 {
		return fmt.Errorf("await data timeout must be non-negative, got %v", d)
	}
	m.awaitDataTimeout = d
	return nil
}

// AddNewShardCursors adds peers to a live merge, typically after topology
// growth routed new cursors to this operation.
func (m *Merger) AddNewShardCursors(specs []core.RemoteCursorSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return core.ErrKilled
	}
	for _, spec := range specs {
		m.addRemoteLocked(spec)
	}
	m.updateHighWaterMarkLocked()
	m.signalIfReadyLocked()
	return nil
}

// CloseShardCursors removes the given peers from round-robin and merge-queue
// consideration while preserving their already-buffered documents, which are
// still drained normally. Restricted to tailable awaitData streams, the only
// mode that tolerates losing a peer's contribution mid-stream without
// corrupting sort order. The peer-side cursors are killed best effort.
func (m *Merger) CloseShardCursors(peerIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return core.ErrKilled
	}
	if m.params.Tailable != core.TailableAwaitData {
		return fmt.Errorf("%w: closeShardCursors on a %s stream", core.ErrTailableRequired, m.params.Tailable)
	}

	// Validate the whole set before touching anything: a bad id must not
	// leave earlier peers in the list half closed.
	records := make([]*remoteCursor, 0, len(peerIDs))
	for _, id := range peerIDs {
		r := m.findRemoteLocked(id)
		if r == nil || r.invalidated || r.closed {
			return fmt.Errorf("%w: peer %s", core.ErrCursorInvalidated, id)
		}
		records = append(records, r)
	}

	for _, r := range records {
		r.closed = true
		r.hasPromisedKey = false
		if r.pendingGetMore != "" {
			m.sched.Cancel(r.pendingGetMore)
		}
		m.killRemoteCursorLocked(r)
		m.log.Debug("closed shard cursor", "peer", r.peerID)
	}

	m.updateHighWaterMarkLocked()
	m.signalIfReadyLocked()
	return nil
}

func (m *Merger) findRemoteLocked(peerID string) *remoteCursor {
	for _, r := range m.remotes {
		if r.peerID == peerID {
			return r
		}
	}
	return nil
}

// killRemoteCursorLocked fires a best-effort, non-waited killCursors for a
// live peer cursor and retires the local id so the peer is never contacted
// again.
func (m *Merger) killRemoteCursorLocked(r *remoteCursor) {
	if r.cursorID == 0 || r.status != nil || r.invalidated {
		r.cursorID = 0
		return
	}

	cmd := core.KillCursors{Namespace: r.namespace, CursorIDs: []int64{r.cursorID}}
	ctx := m.opCtx
	if m.detached {
		ctx = context.Background()
	}
	if _, err := m.sched.ScheduleRemoteCommand(ctx, r.addr, cmd.Encode(), func([]byte, error) {}); err != nil {
		m.log.Warn("killCursors not delivered", "peer", r.peerID, "error", err)
	} else {
		m.metrics.KillCursorsScheduled++
	}
	r.cursorID = 0
	r.invalidated = true
}

// ReleaseMemory asks every idle live peer cursor to release memory pinned on
// its side. Best effort: failures are logged and never fatal. At most one
// releaseMemory is outstanding per peer, independently of getMores.
func (m *Merger) ReleaseMemory() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lifecycle != aliveState {
		return core.ErrKilled
	}
	if m.detached {
		return core.ErrDetached
	}

	for _, r := range m.remotes {
		if r.finished() || r.pendingRelease != "" {
			continue
		}

		cmd := core.ReleaseMemory{Namespace: r.namespace, CursorIDs: []int64{r.cursorID}}
		index := r.index
		handle, err := m.sched.ScheduleRemoteCommand(m.opCtx, r.addr, cmd.Encode(),
			func(reply []byte, cberr error) {
				m.handleReleaseResponse(index, cberr)
			})
		if err != nil {
			m.log.Warn("releaseMemory not delivered", "peer", r.peerID, "error", err)
			continue
		}
		r.pendingRelease = handle
		m.outstanding++
		m.metrics.ReleaseMemoryScheduled++
	}
	return nil
}

func (m *Merger) handleReleaseResponse(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.remotes[index]
	r.pendingRelease = ""
	m.outstanding--

	if err != nil && m.lifecycle == aliveState {
		m.log.Warn("releaseMemory failed", "peer", r.peerID, "error", err)
	}
	m.maybeCompleteKillLocked()
}

// Kill begins teardown: it cancels every outstanding command, fires a best
// effort killCursors for each live peer cursor, and unblocks any outstanding
// event. The returned future is closed once every in-flight callback has
// drained; the merger must not be discarded before then. Kill is idempotent:
// repeat calls return the same future and schedule no duplicate killCursors.
func (m *Merger) Kill(ctx context.Context) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.killFuture != nil {
		return m.killFuture
	}

	m.log.Debug("kill started", "outstanding", m.outstanding)
	m.killFuture = make(chan struct{})
	m.lifecycle = killStartedState

	for _, r := range m.remotes {
		if r.pendingGetMore != "" {
			m.sched.Cancel(r.pendingGetMore)
		}
		if r.pendingRelease != "" {
			m.sched.Cancel(r.pendingRelease)
		}
		m.killRemoteCursorLocked(r)
	}

	if m.nextEvent != nil {
		ev := m.nextEvent
		m.nextEvent = nil
		ev.signal()
	}

	m.maybeCompleteKillLocked()
	return m.killFuture
}

func (m *Merger) maybeCompleteKillLocked() {
	if m.lifecycle != killStartedState || m.outstanding != 0 {
		return
	}
	m.lifecycle = killCompleteState
	close(m.killFuture)
	m.log.Debug("kill complete")
}

// DetachFromOperationContext releases the merger's operation context so the
// owning operation can yield. Buffered state is preserved; scheduling
// operations fail with core.ErrDetached until reattachment.
func (m *Merger) DetachFromOperationContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCtx = nil
	m.detached = true
}

// ReattachToOperationContext installs a fresh operation context. In-flight
// commands issued under the previous context may have been interrupted;
// callers reissue work with ScheduleGetMores or the next NextEvent.
func (m *Merger) ReattachToOperationContext(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCtx = ctx
	m.detached = false
}

// RemotesExhausted reports whether every peer cursor is gone for good:
// declared exhausted by its peer, or retired behind a sticky error. An
// errored peer is never contacted again, so its cursor contributes nothing
// further to the merge even though the peer-side state may outlive it.
func (m *Merger) RemotesExhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.remotes {
		if !r.exhausted() && r.status == nil {
			return false
		}
	}
	return true
}

// PartialResultsReturned reports whether any peer dropped out under
// partial-results tolerance or itself flagged an incomplete result set.
func (m *Merger) PartialResultsReturned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.remotes {
		if r.partialResults {
			return true
		}
	}
	return false
}

// NumRemotes returns the number of peer cursors ever attached to the merge,
// including closed and exhausted ones.
func (m *Merger) NumRemotes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.remotes)
}

// HighWaterMark returns the current high-water mark as raw JSON, or nil if no
// mark has been established yet. The mark never decreases across calls.
func (m *Merger) HighWaterMark() core.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasHWM {
		return nil
	}
	return core.Document(m.highWaterMark.Raw)
}

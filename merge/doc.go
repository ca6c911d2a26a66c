// Package merge implements the asynchronous results merger: a passive,
// mutex-guarded state machine that fans a getMore-style operation out to
// multiple remote peer cursors and presents the caller with a single logical
// stream of documents, either in a requested sort order or in arrival order.
//
// The merger runs no goroutines of its own. The calling thread drives it
// through Ready / NextReady / NextEvent, and the external core.Scheduler's
// worker goroutines deliver command completions into it. NextEvent never
// blocks: it schedules getMores on every eligible peer and returns a wait
// channel the caller integrates into its own event loop.
//
// # Readiness protocol
//
//	for {
//	    for !m.Ready() {
//	        ev, err := m.NextEvent()
//	        if err != nil { ... }
//	        <-ev
//	    }
//	    res, err := m.NextReady()
//	    ...
//	}
//
// # Ordering guarantees
//
// In sorted mode documents are released in non-decreasing sort-key order. In
// tailable awaitData mode the high-water mark additionally guarantees that no
// later-delivered document will ever sort below a previously returned one.
// Unsorted mode makes no cross-peer ordering guarantee and services peers in
// round-robin order.
//
// # Lifecycle
//
// A merger must be killed before it is discarded: Kill cancels outstanding
// commands, fires best-effort killCursors on live peer cursors, and returns a
// future that resolves once every in-flight callback has drained.
package merge

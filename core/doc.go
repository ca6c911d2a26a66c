// Package core provides the foundational domain types and interfaces used by
// shardmerge. It defines the shared vocabulary for:
//
//   - Documents (raw JSON results) and their materialized sort keys
//   - QueryResult (the three-way document / empty-marker / end-of-stream value)
//   - Remote cursor descriptors and the peer reply parser
//   - Wire command encoders (getMore, killCursors, releaseMemory)
//   - The Scheduler contract used to dispatch asynchronous remote commands
//
// The package intentionally keeps implementation concerns (the merge engine,
// concrete schedulers, transports) out of scope, exposing small types and
// interfaces to enable custom backends and extensions.
package core

// Package shardmerge provides a high-level façade over the merge engine and
// its collaborators (scheduler transport & logging) enabling rapid
// construction of scatter/gather query layers. Most applications interact
// with this package by:
//  1. Creating a ShardMerge via New() (optionally overriding the default
//     WebSocket transport or logger)
//  2. Opening one merger per fanned-out operation with Open()
//  3. Driving the merger through Ready / NextReady / NextEvent and finally
//     awaiting Kill()
//
// The façade delegates all semantics to merge.Merger while keeping setup and
// usage ergonomics concise. Defaults are safe for local development and
// testing; production deployments typically supply a tuned transport and a
// structured logger.
package shardmerge

import (
	"context"
	"fmt"

	"github.com/drossix/shardmerge/core"
	"github.com/drossix/shardmerge/logging"
	"github.com/drossix/shardmerge/merge"
	"github.com/drossix/shardmerge/transport"
)

// Params aliases merge.Params so callers of the façade rarely need to import
// the merge package directly.
type Params = merge.Params

// Options configures the ShardMerge instance.
type Options struct {
	// Scheduler dispatches remote commands. Defaults to a transport.Pool
	// with default settings.
	Scheduler core.Scheduler

	// TransportWorkers sizes the default transport's worker pool. Ignored
	// when a Scheduler is supplied.
	TransportWorkers int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ShardMerge is the high-level façade aggregating the scheduler transport and
// per-operation merger construction.
type ShardMerge struct {
	opts      Options
	sched     core.Scheduler
	ownsSched bool
}

// New creates a new ShardMerge instance with optional overrides. If no
// scheduler is supplied a WebSocket transport pool is created and owned by
// the instance.
func New(optFns ...func(o *Options)) (*ShardMerge, error) {
	opts := Options{
		TransportWorkers: 32,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	sched := opts.Scheduler
	owns := false
	if sched == nil {
		pool, err := transport.New(func(o *transport.Options) {
			o.Workers = opts.TransportWorkers
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		sched = pool
		owns = true
	}

	return &ShardMerge{opts: opts, sched: sched, ownsSched: owns}, nil
}

// Open constructs a merger for one fanned-out operation. The context is the
// operation context threaded into every remote command the merger schedules.
func (s *ShardMerge) Open(ctx context.Context, params merge.Params) (*merge.Merger, error) {
	return merge.New(ctx, s.sched, params, func(o *merge.Options) {
		o.Logger = s.opts.Logger
	})
}

// Close releases the owned transport, if any. Mergers opened through this
// instance must be killed and drained first.
func (s *ShardMerge) Close() {
	if s.ownsSched {
		if pool, ok := s.sched.(*transport.Pool); ok {
			pool.Close()
		}
	}
}

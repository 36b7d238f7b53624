// Package workerpool provides the bounded, work-stealing-style
// goroutine pool that drives emuman's scan and materialize task classes
// (spec §5). It generalizes the teacher's per-purpose worker dispatch
// (pkg/filesystem/directory_posix_parallel.go's fixed-size batch
// workers) into a single reusable pool sized by logical CPU count and
// overridable by the invoking program (the --threads flag), built on
// golang.org/x/sync/errgroup the way the rest of the Go ecosystem
// expresses bounded fan-out.
package workerpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks across a bounded number of goroutines. Submitted
// tasks queue and are picked up as workers free, which is what gives
// the pool its work-stealing character: a worker that finishes a short
// task immediately picks up the next queued one rather than sitting
// idle while another worker is still busy on a long one.
type Pool struct {
	group *errgroup.Group
	ctx   context.Context
}

// New creates a Pool bounded to size concurrent tasks. A size <= 0
// defaults to the number of logical CPUs, matching spec §5's "pool size
// defaults to the available core count".
func New(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(size)
	return &Pool{group: group, ctx: groupCtx}
}

// Context returns the pool's context, which is cancelled as soon as any
// submitted task returns a non-nil error. The pool does not check it
// before starting a task; a task that should stop early must watch its
// Done channel (or Cancelled) itself.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Go submits a task to the pool. It blocks only long enough to acquire a
// worker slot (bounded by the pool's size), not for the task to
// complete.
func (p *Pool) Go(task func() error) {
	p.group.Go(task)
}

// Wait blocks until every submitted task has completed and returns the
// first non-nil error encountered, if any.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// Cancelled reports whether the pool's context has been cancelled,
// matching the cooperative stop-flag check described in spec §5.
func (p *Pool) Cancelled() bool {
	select {
	case <-p.ctx.Done():
		return true
	default:
		return false
	}
}

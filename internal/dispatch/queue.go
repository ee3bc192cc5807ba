// Package dispatch implements the single-threaded serial execution context
// that the connection core runs on. It is the concrete realization of "the
// connection's queue" from the transport contract: one goroutine drains a
// channel of closures, so all core state mutation is naturally serialized
// without locks. Callers never touch core state directly; they submit a
// closure and the closure runs on the queue's own goroutine.
package dispatch

import (
	"context"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Queue is a serial execution context backed by a single goroutine.
type Queue struct {
	tasks  chan func()
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	// onPanic, when set, receives panics recovered from a task instead of
	// dumping a stack trace. Tests use this to assert fault isolation.
	onPanic func(recovered any)
}

// New starts a Queue's worker goroutine. Call Stop to shut it down.
func New() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	q := &Queue{
		tasks:  make(chan func(), 256),
		group:  group,
		ctx:    ctx,
		cancel: cancel,
	}
	group.Go(func() error {
		q.loop(gctx)
		return nil
	})
	return q
}

func (q *Queue) loop(ctx context.Context) {
	for {
		select {
		case task := <-q.tasks:
			q.runTask(task)
		case <-ctx.Done():
			q.drain()
			return
		}
	}
}

// drain runs any tasks already queued before the context was cancelled, so
// a Stop racing with Post does not silently swallow submitted work.
func (q *Queue) drain() {
	for {
		select {
		case task := <-q.tasks:
			q.runTask(task)
		default:
			return
		}
	}
}

func (q *Queue) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if q.onPanic != nil {
				q.onPanic(r)
				return
			}
			debug.PrintStack()
		}
	}()
	task()
}

// Post schedules fn to run on the queue's goroutine and returns immediately.
// It never blocks the caller on fn's execution.
func (q *Queue) Post(fn func()) {
	select {
	case q.tasks <- fn:
	case <-q.ctx.Done():
	}
}

// Run schedules fn on the queue's goroutine and blocks until it has
// finished executing or the queue has been stopped. It is the blocking
// counterpart of Post.
func (q *Queue) Run(fn func()) {
	done := make(chan struct{})
	q.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-q.ctx.Done():
	}
}

// SetPanicHook installs a recovered-panic observer, replacing the default
// stack-dump behavior. Intended for tests.
func (q *Queue) SetPanicHook(fn func(recovered any)) {
	q.onPanic = fn
}

// Stop cancels the queue's context and waits for its goroutine to exit.
func (q *Queue) Stop() error {
	q.cancel()
	return q.group.Wait()
}

// Done returns a channel closed once Stop has been called.
func (q *Queue) Done() <-chan struct{} {
	return q.ctx.Done()
}

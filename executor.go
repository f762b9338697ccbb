package nedb

import (
	"context"
	"sync"
)

// command is one FIFO queue entry: a closure capturing its own arguments
// and result slots, plus a completion channel that stands in for the
// source's callback (§4.5/§6).
type command struct {
	fn     func()
	bypass bool
	done   chan struct{}
}

// Executor is the strict FIFO queue of §4.5, run by a single dedicated
// goroutine so that no two commands ever overlap in observable state —
// the collection's sole mutual-exclusion mechanism. The unbounded
// queue/pending split guarded by a sync.Cond mirrors the writer-exclusion
// gate the teacher's in-memory storage backend (storage_mem.go) used for
// the same "one writer at a time" contract, generalized here from a
// binary busy-flag to a full ordered queue.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*command
	pending []*command // buffered while !ready
	ready   bool
	closed  bool
}

// newExecutor starts the worker goroutine. In-memory collections start
// ready; persistent collections start not ready until LoadDatabase's
// bypass command completes.
func newExecutor(ready bool) *Executor {
	e := &Executor{ready: ready}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// submit enqueues fn and blocks until it has run (or ctx is done, in which
// case the caller stops waiting — the queued command itself is never
// skipped or cancelled once it starts, per §5's cancellation model). A
// nil ctx waits unconditionally.
func (e *Executor) submit(ctx context.Context, bypass bool, fn func()) {
	cmd := &command{fn: fn, bypass: bypass, done: make(chan struct{})}
	e.mu.Lock()
	if e.ready || bypass {
		e.queue = append(e.queue, cmd)
	} else {
		e.pending = append(e.pending, cmd)
	}
	e.cond.Signal()
	e.mu.Unlock()

	if ctx == nil {
		<-cmd.done
		return
	}
	select {
	case <-cmd.done:
	case <-ctx.Done():
	}
}

// isReady reports whether the executor has completed its bypass
// (LoadDatabase) command and is now draining ordinary submissions.
func (e *Executor) isReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *Executor) queueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue) + len(e.pending)
}

// close stops the worker goroutine once its queue is empty: commands
// already queued still run first. Commands buffered while the executor is
// not ready are never run.
func (e *Executor) close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

func (e *Executor) loop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		for len(e.queue) == 0 {
			if e.closed {
				return
			}
			e.cond.Wait()
		}
		cmd := e.queue[0]
		e.queue = e.queue[1:]
		wasBypass := cmd.bypass

		e.mu.Unlock()
		cmd.fn()
		close(cmd.done)
		e.mu.Lock()

		if wasBypass && !e.ready {
			e.ready = true
			if len(e.pending) > 0 {
				e.queue = append(e.queue, e.pending...)
				e.pending = nil
			}
		}
	}
}

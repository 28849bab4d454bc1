// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lthread

import (
	"container/list"
	"runtime"
	"sync"
)

type workerState uint8

const (
	workerBusy workerState = iota
	workerFree
)

// computeWorker is one long-lived OS thread of the compute pool. While it
// holds an lthread it lends the lthread its OS thread: the worker parks on
// its own context and the lthread runs until ComputeEnd (or exit) switches
// back.
type computeWorker struct {
	ctx     execContext
	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
	current *Lthread
	state   workerState
}

// computePool is the process-wide compute pool: a FIFO of pending lthreads
// and the workers serving it. Workers are spawned on demand when no free
// worker exists and live for the remainder of the process, as does the pool.
var computePool = struct {
	mu      sync.Mutex
	queue   *list.List
	workers []*computeWorker
}{queue: list.New()}

// ComputeBegin marks the start of a CPU-bound region: the calling lthread
// leaves its scheduler, queues for the compute pool, and next runs on a
// worker's OS thread. The scheduler keeps polling while the lthread is away.
//
// Between ComputeBegin and ComputeEnd the lthread runs concurrently with its
// scheduler; it must not suspend (Sleep, WaitFor, Cond) or touch scheduler
// state until ComputeEnd brings it home. Every ComputeBegin must be paired
// with a ComputeEnd in the same lthread.
func ComputeBegin() error {
	lt := CurrentLthread()
	if lt == nil {
		return ErrNotLthread
	}
	lt.state = StateComputePending
	// the scheduler enqueues us with the pool once we are parked; by the
	// time a worker switches in, this goroutine is quiescent
	lt.yield()
	return nil
}

// ComputeEnd marks the end of a CPU-bound region: the calling lthread yields
// back to its worker, which hands it to the owning scheduler's completed
// list and signals the scheduler's self-pipe. The lthread next runs on its
// original scheduler. A ComputeEnd outside a compute region is a no-op.
func ComputeEnd() error {
	lt := CurrentLthread()
	if lt == nil {
		return ErrNotLthread
	}
	if lt.state != StateCompute {
		return nil
	}
	lt.yield()
	// resumed by the owning scheduler
	lt.state = StateRunning
	return nil
}

// computeAdd hands a parked ComputePending lthread to the pool: append to
// the shared FIFO and signal a free worker, spawning one if none exists.
// Runs on the scheduler, which also records the lthread as compute-bound so
// the loop stays alive while it is away.
func (s *Sched) computeAdd(lt *Lthread) {
	lt.computeElem = s.computeBound.PushBack(lt)

	computePool.mu.Lock()
	lt.queueElem = computePool.queue.PushBack(lt)
	var free *computeWorker
	for _, w := range computePool.workers {
		if w.state == workerFree {
			free = w
			break
		}
	}
	if free == nil {
		free = newComputeWorker()
		computePool.workers = append(computePool.workers, free)
	}
	computePool.mu.Unlock()

	free.mu.Lock()
	free.pending = true
	free.cond.Signal()
	free.mu.Unlock()
}

func newComputeWorker() *computeWorker {
	w := &computeWorker{
		ctx:   newExecContext(),
		state: workerBusy,
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// run is the worker loop: pop a pending lthread, lend it the OS thread, and
// on its way out hand it back to the owning scheduler. With the queue empty
// the worker marks itself free and sleeps on its condition variable.
func (w *computeWorker) run() {
	runtime.LockOSThread()
	for {
		computePool.mu.Lock()
		var lt *Lthread
		if e := computePool.queue.Front(); e != nil {
			lt = computePool.queue.Remove(e).(*Lthread)
			lt.queueElem = nil
			w.state = workerBusy
			w.current = lt
		} else {
			w.state = workerFree
		}
		computePool.mu.Unlock()

		if lt == nil {
			w.mu.Lock()
			for !w.pending {
				w.cond.Wait()
			}
			w.pending = false
			w.mu.Unlock()
			continue
		}

		lt.worker = w
		lt.returnTo = &w.ctx
		lt.state = StateCompute
		switchContext(&w.ctx, &lt.ctx)

		// back from ComputeEnd, or from the lthread exiting mid-compute
		s := lt.sched
		if lt.state != StateExited {
			lt.state = StateReady
		}
		computePool.mu.Lock()
		lt.queueElem = s.completed.PushBack(lt)
		w.current = nil
		computePool.mu.Unlock()
		// wake errors are expected if the scheduler is tearing down
		_ = wakeSched(s.wakeWriteFd)
	}
}

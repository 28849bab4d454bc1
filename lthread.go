package lthread

import (
	"container/list"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// EntryFunc is the entry point of an lthread. The returned value becomes the
// lthread's exit value, handed to a joiner via [Join].
type EntryFunc func(arg any) any

var lthreadIDCounter atomic.Uint64

// Lthread is a cooperatively scheduled task: a lazily started goroutine with
// its own execution context, bound to the scheduler that created it.
//
// All fields are owned by the lthread's scheduler domain (the scheduler
// goroutine, the lthread's own goroutine, or the compute worker currently
// lending it an OS thread — never more than one at a time). The exceptions,
// queueElem while on the compute pool's queues, are guarded by the pool
// mutex.
type Lthread struct {
	id   uint64
	name string

	fn  EntryFunc
	arg any

	ctx      execContext
	returnTo *execContext
	started  bool
	gid      uint64

	sched  *Sched
	worker *computeWorker

	state    State
	detached bool

	// microseconds since scheduler birth
	birth    int64
	lastRun  int64
	deadline int64

	fdWait int
	waitEv IOEvents

	joiner  *Lthread
	exitVal any

	// container handles; at most one FIFO membership at a time, plus the
	// scheduler's compute-bound bookkeeping list while offloaded
	queueElem   *list.Element
	computeElem *list.Element
	node        *sleepNode
	sleepElem   *list.Element

	ops uint32
}

// Spawn creates an lthread owned by s, in state New, appended to the NEW
// FIFO. No goroutine is started until the scheduler first resumes it.
//
// Spawn must be called from s's scheduling domain: before Run, from the
// goroutine that created s, or afterwards from one of s's lthreads.
func (s *Sched) Spawn(fn EntryFunc, arg any) (*Lthread, error) {
	if s.done {
		return nil, ErrSchedDone
	}
	lt := &Lthread{
		id:     lthreadIDCounter.Add(1),
		fn:     fn,
		arg:    arg,
		ctx:    newExecContext(),
		sched:  s,
		state:  StateNew,
		fdWait: -1,
		birth:  s.usecs(),
	}
	lt.returnTo = &s.ctx
	lt.queueElem = s.newq.PushBack(lt)
	s.total++
	s.created++
	s.log.Debug().
		Uint64(`lthread`, lt.id).
		Log(`lthread spawned`)
	return lt, nil
}

// Spawn creates an lthread on the calling goroutine's scheduler.
func Spawn(fn EntryFunc, arg any) (*Lthread, error) {
	s := CurrentSched()
	if s == nil {
		return nil, ErrSchedRequired
	}
	return s.Spawn(fn, arg)
}

// ID returns the lthread's process-wide unique id.
func (lt *Lthread) ID() uint64 { return lt.id }

// Name returns the lthread's debug name.
func (lt *Lthread) Name() string { return lt.name }

// SetName sets a short debug name, included in log events.
func (lt *Lthread) SetName(name string) { lt.name = name }

// State returns the lthread's current lifecycle tag.
func (lt *Lthread) State() State { return lt.state }

// Ops returns the number of times the lthread has been resumed.
func (lt *Lthread) Ops() uint32 { return lt.ops }

// Detach marks the lthread to be freed immediately on exit instead of being
// held for [Join]. Do not join a detached lthread.
func (lt *Lthread) Detach() { lt.detached = true }

// Detach marks the calling lthread as detached.
func Detach() error {
	lt := CurrentLthread()
	if lt == nil {
		return ErrNotLthread
	}
	lt.detached = true
	return nil
}

// Exit terminates the calling lthread with the given exit value, as if its
// entry function had returned v. It does not return.
func Exit(v any) {
	lt := CurrentLthread()
	if lt == nil {
		panic(ErrNotLthread)
	}
	lt.exitVal = v
	runtime.Goexit()
}

// Join blocks the calling lthread until target exits, then returns target's
// exit value. The target is freed once joined. Joining a detached lthread,
// or joining the same lthread twice, is undefined.
func Join(target *Lthread) (any, error) {
	self := CurrentLthread()
	if self == nil {
		return nil, ErrNotLthread
	}
	if target.state == StateExited {
		v := target.exitVal
		target.sched.free(target)
		return v, nil
	}
	target.joiner = self
	self.state = StateLocked
	self.yield()
	self.state = StateRunning
	return target.exitVal, nil
}

// Yield suspends the calling lthread and re-enqueues it at the back of the
// ready FIFO, letting every other runnable lthread of its scheduler proceed
// first. From a non-lthread goroutine it degrades to runtime.Gosched.
func Yield() {
	lt := CurrentLthread()
	if lt == nil {
		runtime.Gosched()
		return
	}
	lt.state = StateReady
	lt.queueElem = lt.sched.readyq.PushBack(lt)
	lt.yield()
	lt.state = StateRunning
}

// Sleep suspends the calling lthread for at least d. A non-positive d is an
// explicit yield. From a non-lthread goroutine it degrades to time.Sleep.
func Sleep(d time.Duration) {
	lt := CurrentLthread()
	if lt == nil {
		time.Sleep(d)
		return
	}
	if d <= 0 {
		Yield()
		return
	}
	lt.sched.schedSleep(lt, d)
	lt.yield()
	// wakes with StateExpired
	lt.state = StateRunning
}

// yield switches from the lthread's context back to whichever host context
// resumed it (the scheduler, or a compute worker during an offload run).
// The caller must already have set the lthread's state tag.
func (lt *Lthread) yield() {
	switchContext(&lt.ctx, lt.returnTo)
}

// start launches the lthread's goroutine. Called by the scheduler on first
// resume; this is where the execution stack comes into existence.
func (lt *Lthread) start() {
	lt.started = true
	go lt.bootstrap()
}

// bootstrap is the first frame of every lthread goroutine: register the
// goroutine, park for the initial resume, run the entry function, and exit.
// It never returns control to the scheduler by falling through; the final
// switch-out happens in finalize, which also runs on Exit and on panic.
func (lt *Lthread) bootstrap() {
	lt.gid = goroutineID()
	setCurrentLthread(lt.gid, lt)
	defer lt.finalize()
	parkContext(&lt.ctx)
	lt.state = StateRunning
	defer func() {
		if r := recover(); r != nil {
			lt.sched.log.Err().
				Uint64(`lthread`, lt.id).
				Str(`name`, lt.name).
				Interface(`panic`, r).
				Str(`stack`, string(debug.Stack())).
				Log(`lthread panicked`)
		}
	}()
	lt.exitVal = lt.fn(lt.arg)
}

// finalize performs the EXITED transition and the final switch out of the
// dying goroutine. Joiner hand-off and freeing happen on the other side of
// the switch, in the scheduler's cleanup.
func (lt *Lthread) finalize() {
	clearCurrentLthread(lt.gid)
	lt.state = StateExited
	exitContext(lt.returnTo)
}

// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lthread

import (
	"container/list"
	"fmt"
	"runtime"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultStackSize is the per-lthread stack size hint used when
	// NewSched is given zero. Goroutine stacks are runtime-managed, so the
	// value is bookkeeping for API parity, not an allocation size.
	DefaultStackSize = 4 << 20

	// defaultIOTimeout bounds a poll when no deadline is pending.
	defaultIOTimeout = 10 * time.Second

	// defaultMaxEvents is the poll batch size.
	defaultMaxEvents = 256
)

// Sched is a per-goroutine cooperative scheduler: it owns a set of lthreads
// and multiplexes them over its Run goroutine by switching contexts at
// suspension points.
//
// A scheduler shares nothing with other schedulers except the process-wide
// compute pool and its own self-pipe, which compute workers use to hand
// completed lthreads back. Every other structure is touched only from the
// scheduler's own alternation domain and needs no locks.
type Sched struct {
	// Prevent copying
	_ [0]func()

	stackSize      int
	defaultTimeout time.Duration
	maxEvents      int

	birth time.Time
	gid   uint64
	done  bool

	ctx     execContext
	current *Lthread

	newq         *list.List
	readyq       *list.List
	computeBound *list.List
	completed    *list.List // guarded by the compute pool mutex

	sleepq  sleepQueue
	waiters []*Lthread // 2*maxFDs; read and write waiters interleaved

	poller poller
	events []pollEvent

	wakeFd      int
	wakeWriteFd int

	total    int
	sleeping int
	waiting  int
	created  uint64
	freed    uint64

	log      *logiface.Logger[logiface.Event]
	pollErrs *catrate.Limiter
}

// SchedStats is a snapshot of a scheduler's counters.
type SchedStats struct {
	Total    int
	Sleeping int
	Waiting  int
	Created  uint64
	Freed    uint64
}

// NewSched initialises a scheduler bound to the calling goroutine. It is
// idempotent per goroutine: a second call returns the scheduler already
// bound, ignoring opts.
func NewSched(opts ...SchedOption) (*Sched, error) {
	gid := goroutineID()
	if s := lookupSched(gid); s != nil {
		return s, nil
	}

	cfg, err := resolveSchedOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Sched{
		stackSize:      cfg.stackSize,
		defaultTimeout: cfg.defaultTimeout,
		maxEvents:      cfg.maxEvents,
		birth:          time.Now(),
		gid:            gid,
		ctx:            newExecContext(),
		newq:           list.New(),
		readyq:         list.New(),
		computeBound:   list.New(),
		completed:      list.New(),
		sleepq:         newSleepQueue(),
		waiters:        make([]*Lthread, 2*maxFDs),
		events:         make([]pollEvent, cfg.maxEvents),
		wakeFd:         -1,
		wakeWriteFd:    -1,
		log:            cfg.logger,
		pollErrs:       catrate.NewLimiter(map[time.Duration]int{time.Minute: 10}),
	}

	if err := s.poller.init(cfg.maxEvents); err != nil {
		return nil, fmt.Errorf(`lthread: init poller: %w`, err)
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		_ = s.poller.close()
		return nil, fmt.Errorf(`lthread: create wake fd: %w`, err)
	}
	s.wakeFd = wakeFd
	s.wakeWriteFd = wakeWriteFd

	if err := s.poller.arm(wakeFd, EventRead); err != nil {
		_ = s.poller.close()
		closeWakeFd(wakeFd, wakeWriteFd)
		return nil, fmt.Errorf(`lthread: arm wake fd: %w`, err)
	}

	setCurrentSched(gid, s)

	s.log.Info().
		Int(`stack_size`, s.stackSize).
		Dur(`default_timeout`, s.defaultTimeout).
		Log(`scheduler created`)

	return s, nil
}

// StackSize returns the per-lthread stack size hint.
func (s *Sched) StackSize() int { return s.stackSize }

// Stats returns a snapshot of the scheduler's counters. Only meaningful from
// the scheduler's own domain, or after Run has returned.
func (s *Sched) Stats() SchedStats {
	return SchedStats{
		Total:    s.total,
		Sleeping: s.sleeping,
		Waiting:  s.waiting,
		Created:  s.created,
		Freed:    s.freed,
	}
}

// Current returns the lthread the scheduler is executing, or nil.
func (s *Sched) Current() *Lthread { return s.current }

// usecs returns microseconds since scheduler birth, on the monotonic clock.
func (s *Sched) usecs() int64 {
	return time.Since(s.birth).Microseconds()
}

// Run drives the scheduler until no lthreads remain, then frees its
// resources. It locks the calling goroutine to its OS thread for the
// duration, as the poller requires.
//
// One iteration: drain the NEW FIFO (including lthreads spawned during the
// drain), drain the ready FIFO, expire sleepers, poll with a timeout bounded
// by the earliest deadline, dispatch I/O wakeups, and hand back compute
// completions signalled on the self-pipe.
func (s *Sched) Run() error {
	if s.done {
		return ErrSchedDone
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := goroutineID()
	if gid != s.gid {
		setCurrentSched(gid, s)
		defer clearCurrentSched(gid)
	}

	s.log.Info().Log(`scheduler running`)

	var runErr error
	for s.total > 0 {
		s.drainNew()
		s.drainReady()
		s.expireSleepers()
		if s.total == 0 {
			break
		}

		n, err := s.poller.poll(s.pollTimeout(), s.events)
		if err != nil {
			if _, ok := s.pollErrs.Allow(`poll`); ok {
				s.log.Err().Err(err).Log(`poll failed`)
			}
			runErr = fmt.Errorf(`lthread: poll: %w`, err)
			break
		}

		wake := false
		for i := 0; i < n; i++ {
			if s.events[i].fd == s.wakeFd {
				wake = true
				continue
			}
			s.handleIOEvent(s.events[i])
		}
		if wake {
			s.drainCompleted()
		}
	}

	s.destroy()
	return runErr
}

// drainNew resumes every lthread in the NEW FIFO, launching its goroutine on
// first resume. Lthreads spawned while draining are picked up in the same
// pass.
func (s *Sched) drainNew() {
	for s.newq.Len() > 0 {
		lt := s.newq.Remove(s.newq.Front()).(*Lthread)
		lt.queueElem = nil
		lt.state = StateReady
		s.resume(lt)
	}
}

// drainReady resumes lthreads made ready by signal, broadcast, join
// completion, or explicit yield. Only the batch present at entry is drained;
// lthreads that re-enqueue themselves wait for the next iteration, keeping
// the poller serviced under a yield storm.
func (s *Sched) drainReady() {
	for n := s.readyq.Len(); n > 0; n-- {
		lt := s.readyq.Remove(s.readyq.Front()).(*Lthread)
		lt.queueElem = nil
		s.resume(lt)
	}
}

// expireSleepers resumes, in deadline then insertion order, every lthread
// whose wake deadline has elapsed. A waiter whose timeout won the race has
// its fd disarmed before resume; a sleeper that was signalled between expiry
// collection and resume is skipped (it sits in the ready FIFO instead).
func (s *Sched) expireSleepers() {
	expired := s.sleepq.expireUpTo(s.usecs())
	for _, lt := range expired {
		s.sleeping--
		if lt.state != StateExpired {
			continue
		}
		if lt.fdWait >= 0 {
			s.cancelWait(lt)
		}
		s.resume(lt)
	}
}

// pollTimeout computes the poll bound in milliseconds: zero when ready work
// is already queued, else the earliest deadline capped by the default
// timeout, with sub-millisecond waits rounded up to 1ms.
func (s *Sched) pollTimeout() int {
	if s.newq.Len() > 0 || s.readyq.Len() > 0 {
		return 0
	}
	d := s.defaultTimeout
	if deadline, ok := s.sleepq.nextDeadline(); ok {
		delta := time.Duration(deadline-s.usecs()) * time.Microsecond
		if delta < 0 {
			delta = 0
		}
		if delta < d {
			d = delta
		}
	}
	if d > 0 && d < time.Millisecond {
		return 1
	}
	return int(d.Milliseconds())
}

// handleIOEvent wakes the read and/or write waiter indexed under the event's
// fd. Peer hang-up resumes the waiter as FDEOF; everything else, including
// error conditions the waiter will observe on its next syscall, resumes it
// ready. The fired direction is disarmed before resume.
func (s *Sched) handleIOEvent(ev pollEvent) {
	if ev.events&(EventRead|EventHangup|EventError) != 0 {
		s.wakeWaiter(ev.fd, EventRead, ev.events)
	}
	if ev.events&(EventWrite|EventHangup|EventError) != 0 {
		s.wakeWaiter(ev.fd, EventWrite, ev.events)
	}
}

func (s *Sched) wakeWaiter(fd int, dir, fired IOEvents) {
	lt := s.waiters[waiterIndex(fd, dir)]
	if lt == nil {
		return
	}
	s.waiters[waiterIndex(fd, dir)] = nil
	s.waiting--
	_ = s.poller.disarm(fd, dir)
	if lt.node != nil {
		s.deschedSleep(lt)
	}
	if fired&EventHangup != 0 {
		lt.state = StateFDEOF
	} else {
		lt.state = StateReady
	}
	s.resume(lt)
}

// drainCompleted drains the self-pipe and resumes every compute lthread the
// pool handed back to this scheduler.
func (s *Sched) drainCompleted() {
	s.drainWake()
	for {
		computePool.mu.Lock()
		e := s.completed.Front()
		if e != nil {
			s.completed.Remove(e)
		}
		computePool.mu.Unlock()
		if e == nil {
			return
		}
		lt := e.Value.(*Lthread)
		lt.queueElem = nil
		if lt.computeElem != nil {
			s.computeBound.Remove(lt.computeElem)
			lt.computeElem = nil
		}
		lt.worker = nil
		s.resume(lt)
	}
}

// drainWake empties the self-pipe.
func (s *Sched) drainWake() {
	var buf [8]byte
	for {
		if _, err := readFD(s.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// resume transfers control into lt until it suspends or exits. The first
// resume of an lthread launches its goroutine.
func (s *Sched) resume(lt *Lthread) {
	if lt.state == StateExited {
		s.cleanup(lt)
		return
	}
	if !lt.started {
		lt.start()
	}
	lt.returnTo = &s.ctx
	lt.lastRun = s.usecs()
	lt.ops++
	s.current = lt
	switchContext(&s.ctx, &lt.ctx)
	s.current = nil
	switch lt.state {
	case StateExited:
		s.cleanup(lt)
	case StateComputePending:
		s.computeAdd(lt)
	}
}

// cleanup runs after an lthread's final switch-out: hand the exit value to a
// waiting joiner, free a detached lthread, or leave the zombie for Join.
func (s *Sched) cleanup(lt *Lthread) {
	s.total--
	s.log.Debug().
		Uint64(`lthread`, lt.id).
		Str(`name`, lt.name).
		Uint64(`ops`, uint64(lt.ops)).
		Log(`lthread exited`)
	if j := lt.joiner; j != nil {
		lt.joiner = nil
		j.state = StateReady
		j.queueElem = s.readyq.PushBack(j)
		s.free(lt)
	} else if lt.detached {
		s.free(lt)
	}
}

// free releases the lthread's bookkeeping. Memory is the collector's.
func (s *Sched) free(lt *Lthread) {
	s.freed++
}

// schedSleep inserts lt into the sleep queue at now+d and tags it Sleeping.
func (s *Sched) schedSleep(lt *Lthread, d time.Duration) {
	s.sleepq.add(lt, s.usecs()+d.Microseconds())
	s.sleeping++
}

// deschedSleep removes lt from the sleep queue before its deadline.
func (s *Sched) deschedSleep(lt *Lthread) {
	s.sleepq.remove(lt)
	s.sleeping--
}

// cancelWait tears down the fd side of a wait whose timeout fired first:
// disarm the direction, clear the waiter index. The sleep-queue side is
// already gone by the time this runs.
func (s *Sched) cancelWait(lt *Lthread) {
	_ = s.poller.disarm(lt.fdWait, lt.waitEv)
	s.waiters[waiterIndex(lt.fdWait, lt.waitEv)] = nil
	s.waiting--
}

// destroy waits out lthreads still bound to the compute pool, then frees the
// poller and self-pipe and unbinds the scheduler.
func (s *Sched) destroy() {
	for s.computeBound.Len() > 0 {
		s.drainCompleted()
		if s.computeBound.Len() == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	_ = s.poller.close()
	closeWakeFd(s.wakeFd, s.wakeWriteFd)
	s.wakeFd = -1
	s.wakeWriteFd = -1
	clearCurrentSched(s.gid)
	s.done = true
	s.log.Info().
		Uint64(`created`, s.created).
		Uint64(`freed`, s.freed).
		Log(`scheduler done`)
}

// waiterIndex maps (fd, direction) to a slot in the waiter table; read and
// write waiters for one fd occupy adjacent slots.
func waiterIndex(fd int, dir IOEvents) int {
	idx := fd * 2
	if dir == EventWrite {
		idx++
	}
	return idx
}

// Package lthread provides a user-space cooperative multitasking runtime:
// lightweight tasks ("lthreads"), each with an independent execution
// context, multiplexed over per-goroutine schedulers that switch between
// tasks at well-defined suspension points.
//
// # Architecture
//
// A [Sched] owns a set of lthreads, a readiness poller, a deadline-ordered
// sleep queue, and a self-pipe. Its [Sched.Run] loop resumes newly spawned
// lthreads, expires sleepers, dispatches I/O wakeups, and collects lthreads
// returning from the compute pool. An [Lthread] is a lazily started
// goroutine; control moves between the scheduler and an lthread through a
// strict channel rendezvous, so at most one of them executes at a time and
// scheduler state needs no locks.
//
// Lthreads suspend only by calling [Yield], [Sleep], [WaitFor], [Join],
// [Cond.Wait], [Cond.WaitTimeout], [ComputeBegin]/[ComputeEnd], or by
// returning from their entry function. Between suspension points an lthread runs without
// preemption. There is no work stealing: an lthread belongs to the
// scheduler that spawned it for its whole life, leaving only temporarily
// through the compute pool.
//
// # Platform Support
//
// I/O readiness is implemented using platform-native mechanisms:
//   - Linux: epoll, with an eventfd self-pipe
//   - macOS: kqueue, with a pipe self-pipe
//
// # Compute Offload
//
// [ComputeBegin] moves the calling lthread onto a process-wide pool of
// OS-thread-pinned workers so CPU-bound work cannot stall its scheduler's
// I/O progress; [ComputeEnd] hands it back through the scheduler's
// self-pipe. The pool queue and the self-pipe write ends are the only
// structures shared between OS threads.
//
// # Usage
//
//	sched, err := lthread.NewSched()
//	if err != nil {
//		// ...
//	}
//	sched.Spawn(func(arg any) any {
//		lthread.Sleep(10 * time.Millisecond)
//		return nil
//	}, nil)
//	err = sched.Run() // blocks until every lthread has finished
//
// Structured logging uses github.com/joeycumines/logiface, configured per
// scheduler via [WithLogger] or process-wide via [SetLogger]; the zero
// configuration is silent.
package lthread

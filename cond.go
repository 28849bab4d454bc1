package lthread

import (
	"container/list"
	"time"
)

// Cond is a FIFO rendezvous for lthreads of one scheduler. It carries no
// lock: within a scheduler's alternation domain, wait and wake never race.
//
// All methods require the caller and every blocked lthread to belong to the
// same scheduler; cross-scheduler use is undefined.
type Cond struct {
	q *list.List
}

// NewCond creates an empty condition variable.
func NewCond() *Cond {
	return &Cond{q: list.New()}
}

// Wait blocks the calling lthread until Signal or Broadcast wakes it.
func (c *Cond) Wait() error {
	lt := CurrentLthread()
	if lt == nil {
		return ErrNotLthread
	}
	lt.state = StateLocked
	lt.queueElem = c.q.PushBack(lt)
	lt.yield()
	lt.state = StateRunning
	return nil
}

// WaitTimeout blocks like Wait but gives up after d, returning true if the
// wait expired rather than being signalled. A d <= 0 waits indefinitely.
func (c *Cond) WaitTimeout(d time.Duration) (bool, error) {
	lt := CurrentLthread()
	if lt == nil {
		return false, ErrNotLthread
	}
	lt.state = StateLocked
	lt.queueElem = c.q.PushBack(lt)
	if d > 0 {
		lt.sched.schedSleep(lt, d)
		// schedSleep tags Sleeping; the condvar queue holds us, restore
		lt.state = StateLocked
	}
	lt.yield()
	if lt.state == StateExpired {
		// timed out while still queued; take ourselves out
		if lt.queueElem != nil {
			c.q.Remove(lt.queueElem)
			lt.queueElem = nil
		}
		lt.state = StateRunning
		return true, nil
	}
	lt.state = StateRunning
	return false, nil
}

// Signal wakes the head of the FIFO, if any. The woken lthread is resumed by
// its scheduler on a subsequent iteration; this is not a direct handoff.
func (c *Cond) Signal() {
	e := c.q.Front()
	if e == nil {
		return
	}
	c.wake(e)
}

// Broadcast wakes every blocked lthread, preserving FIFO order.
func (c *Cond) Broadcast() {
	for c.q.Len() > 0 {
		c.wake(c.q.Front())
	}
}

func (c *Cond) wake(e *list.Element) {
	lt := c.q.Remove(e).(*Lthread)
	lt.queueElem = nil
	if lt.node != nil {
		lt.sched.deschedSleep(lt)
	}
	lt.state = StateReady
	lt.queueElem = lt.sched.readyq.PushBack(lt)
}

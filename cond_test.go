package lthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnWaiter(t *testing.T, s *Sched, cv *Cond, name string, order *[]string) {
	t.Helper()
	lt, err := s.Spawn(func(any) any {
		if err := cv.Wait(); err != nil {
			t.Errorf("Wait() failed: %v", err)
			return nil
		}
		*order = append(*order, name)
		return nil
	}, nil)
	require.NoError(t, err)
	lt.SetName(name)
	lt.Detach()
}

// Three waiters queue A, B, C; two signals with a yield between wake A then
// B, while C stays blocked until the final broadcast.
func TestCondSignalFIFO(t *testing.T) {
	s, err := NewSched()
	require.NoError(t, err)
	cv := NewCond()

	var order []string
	spawnWaiter(t, s, cv, "a", &order)
	spawnWaiter(t, s, cv, "b", &order)
	spawnWaiter(t, s, cv, "c", &order)

	sig, err := s.Spawn(func(any) any {
		cv.Signal()
		Yield()
		cv.Signal()
		Yield()
		Yield() // give b a full turn
		if len(order) != 2 || order[0] != "a" || order[1] != "b" {
			t.Errorf("after two signals, order = %v, want [a b]", order)
		}
		if cv.q.Len() != 1 {
			t.Errorf("c should still be blocked, queue len = %d", cv.q.Len())
		}
		cv.Broadcast()
		return nil
	}, nil)
	require.NoError(t, err)
	sig.Detach()

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// Broadcast wakes every waiter in FIFO order.
func TestCondBroadcastFIFO(t *testing.T) {
	s, err := NewSched()
	require.NoError(t, err)
	cv := NewCond()

	var order []string
	for _, name := range []string{"a", "b", "c", "d"} {
		spawnWaiter(t, s, cv, name, &order)
	}

	caster, err := s.Spawn(func(any) any {
		cv.Broadcast()
		return nil
	}, nil)
	require.NoError(t, err)
	caster.Detach()

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

// Signal on an empty condvar is a no-op.
func TestCondSignalEmpty(t *testing.T) {
	s, err := NewSched()
	require.NoError(t, err)
	cv := NewCond()

	lt, err := s.Spawn(func(any) any {
		cv.Signal()
		cv.Broadcast()
		return nil
	}, nil)
	require.NoError(t, err)
	lt.Detach()

	require.NoError(t, s.Run())
}

// An unsignalled WaitTimeout expires; a signalled one reports the signal.
func TestCondWaitTimeout(t *testing.T) {
	s, err := NewSched()
	require.NoError(t, err)
	cv := NewCond()

	var expired, signalled bool
	var signalledAfter time.Duration

	a, err := s.Spawn(func(any) any {
		var err error
		expired, err = cv.WaitTimeout(10 * time.Millisecond)
		if err != nil {
			t.Errorf("WaitTimeout() failed: %v", err)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	a.Detach()

	start := time.Now()
	b, err := s.Spawn(func(any) any {
		ex, err := cv.WaitTimeout(time.Second)
		if err != nil {
			t.Errorf("WaitTimeout() failed: %v", err)
		}
		signalled = !ex
		signalledAfter = time.Since(start)
		return nil
	}, nil)
	require.NoError(t, err)
	b.Detach()

	sig, err := s.Spawn(func(any) any {
		Sleep(30 * time.Millisecond) // a expires first and leaves the queue
		cv.Signal()
		return nil
	}, nil)
	require.NoError(t, err)
	sig.Detach()

	require.NoError(t, s.Run())
	assert.True(t, expired, "a's wait should expire")
	assert.True(t, signalled, "b should be woken by the signal")
	assert.GreaterOrEqual(t, signalledAfter, 30*time.Millisecond)
	assert.Less(t, signalledAfter, time.Second)
	assert.Zero(t, cv.q.Len())
}

func TestCondWaitOutsideLthread(t *testing.T) {
	cv := NewCond()
	done := make(chan error, 1)
	go func() { done <- cv.Wait() }()
	assert.Equal(t, ErrNotLthread, <-done)
}

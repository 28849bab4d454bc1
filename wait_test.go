// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package lthread

import (
	"os"
	"testing"
	"time"
)

// A read waiter with a generous timeout resumes ready as soon as a byte is
// written, at roughly the writer's delay rather than the timeout.
func TestWaitForReady(t *testing.T) {
	s, err := NewSched()
	if err != nil {
		t.Fatalf("NewSched() failed: %v", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var res WaitResult
	var waitErr error
	var elapsed time.Duration
	start := time.Now()

	waiter, err := s.Spawn(func(any) any {
		res, waitErr = WaitFor(int(r.Fd()), EventRead, 50*time.Millisecond)
		elapsed = time.Since(start)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	waiter.Detach()

	writer, err := s.Spawn(func(any) any {
		Sleep(10 * time.Millisecond)
		if _, err := w.Write([]byte{'x'}); err != nil {
			t.Errorf("write failed: %v", err)
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	writer.Detach()

	if err := s.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if waitErr != nil {
		t.Fatalf("WaitFor() failed: %v", waitErr)
	}
	if res != WaitReady {
		t.Fatalf("result = %v, want Ready", res)
	}
	if elapsed < 10*time.Millisecond || elapsed >= 50*time.Millisecond {
		t.Fatalf("elapsed = %s, want ~10ms (well under the 50ms timeout)", elapsed)
	}
	if s.Stats().Waiting != 0 {
		t.Fatalf("waiting counter = %d, want 0", s.Stats().Waiting)
	}
}

// When the timeout fires first, the waiter resumes expired and a later write
// does not double-wake it.
func TestWaitForExpired(t *testing.T) {
	s, err := NewSched()
	if err != nil {
		t.Fatalf("NewSched() failed: %v", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var res WaitResult
	var waitErr error
	var elapsed time.Duration
	wakes := 0
	start := time.Now()

	waiter, err := s.Spawn(func(any) any {
		res, waitErr = WaitFor(int(r.Fd()), EventRead, 50*time.Millisecond)
		elapsed = time.Since(start)
		wakes++
		// stay alive past the late write; a stale readiness event would
		// surface as a scheduler-side panic or a second wake
		Sleep(80 * time.Millisecond)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	waiter.Detach()

	writer, err := s.Spawn(func(any) any {
		Sleep(100 * time.Millisecond)
		if _, err := w.Write([]byte{'x'}); err != nil {
			t.Errorf("write failed: %v", err)
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	writer.Detach()

	if err := s.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if waitErr != nil {
		t.Fatalf("WaitFor() failed: %v", waitErr)
	}
	if res != WaitExpired {
		t.Fatalf("result = %v, want Expired", res)
	}
	if elapsed < 50*time.Millisecond || elapsed >= 100*time.Millisecond {
		t.Fatalf("elapsed = %s, want ~50ms", elapsed)
	}
	if wakes != 1 {
		t.Fatalf("waiter woke %d times, want 1", wakes)
	}
}

// A read waiter on a pipe whose write end closes resumes with EOF, without
// any read having been issued.
func TestWaitForEOF(t *testing.T) {
	s, err := NewSched()
	if err != nil {
		t.Fatalf("NewSched() failed: %v", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()

	var res WaitResult
	var waitErr error

	waiter, err := s.Spawn(func(any) any {
		res, waitErr = WaitFor(int(r.Fd()), EventRead, 0)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	waiter.Detach()

	closer, err := s.Spawn(func(any) any {
		Sleep(5 * time.Millisecond)
		w.Close()
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	closer.Detach()

	if err := s.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if waitErr != nil {
		t.Fatalf("WaitFor() failed: %v", waitErr)
	}
	if res != WaitEOF {
		t.Fatalf("result = %v, want EOF", res)
	}
}

// A write waiter on a pipe with buffer space resumes ready immediately.
func TestWaitForWrite(t *testing.T) {
	s, err := NewSched()
	if err != nil {
		t.Fatalf("NewSched() failed: %v", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	defer r.Close()
	defer w.Close()

	var res WaitResult
	var waitErr error
	waiter, err := s.Spawn(func(any) any {
		res, waitErr = WaitFor(int(w.Fd()), EventWrite, 50*time.Millisecond)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	waiter.Detach()

	if err := s.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if waitErr != nil {
		t.Fatalf("WaitFor() failed: %v", waitErr)
	}
	if res != WaitReady {
		t.Fatalf("result = %v, want Ready", res)
	}
}

func TestWaitForContractErrors(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := WaitFor(0, EventRead, 0)
		done <- err
	}()
	if err := <-done; err != ErrNotLthread {
		t.Fatalf("WaitFor outside lthread = %v, want ErrNotLthread", err)
	}

	s, err := NewSched()
	if err != nil {
		t.Fatalf("NewSched() failed: %v", err)
	}
	lt, err := s.Spawn(func(any) any {
		if _, err := WaitFor(3, EventError, 0); err != ErrInvalidEvent {
			t.Errorf("WaitFor(EventError) = %v, want ErrInvalidEvent", err)
		}
		if _, err := WaitFor(maxFDs, EventRead, 0); err != ErrFDOutOfRange {
			t.Errorf("WaitFor(out of range) = %v, want ErrFDOutOfRange", err)
		}
		if _, err := WaitFor(-1, EventRead, 0); err != ErrFDOutOfRange {
			t.Errorf("WaitFor(-1) = %v, want ErrFDOutOfRange", err)
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	lt.Detach()
	if err := s.Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
}

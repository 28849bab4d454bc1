package lthread

import (
	"runtime"
	"sync"
)

// Goroutine-keyed registries standing in for OS thread-local storage. The
// scheduler slot is set by NewSched/Run for the loop goroutine; each lthread
// goroutine registers itself at bootstrap. Compute workers register neither,
// so code running there resolves the owning scheduler via the lthread.
var (
	currentLthreads = struct {
		sync.RWMutex
		m map[uint64]*Lthread
	}{m: make(map[uint64]*Lthread)}

	currentScheds = struct {
		sync.RWMutex
		m map[uint64]*Sched
	}{m: make(map[uint64]*Sched)}
)

// CurrentLthread returns the lthread bound to the calling goroutine, or nil.
func CurrentLthread() *Lthread {
	gid := goroutineID()
	currentLthreads.RLock()
	lt := currentLthreads.m[gid]
	currentLthreads.RUnlock()
	return lt
}

// CurrentSched returns the scheduler bound to the calling goroutine, or nil.
//
// Inside an lthread this is the owning scheduler regardless of which OS
// thread is executing it; on a bare compute worker it is nil.
func CurrentSched() *Sched {
	if lt := CurrentLthread(); lt != nil {
		return lt.sched
	}
	gid := goroutineID()
	currentScheds.RLock()
	s := currentScheds.m[gid]
	currentScheds.RUnlock()
	return s
}

func setCurrentLthread(gid uint64, lt *Lthread) {
	currentLthreads.Lock()
	currentLthreads.m[gid] = lt
	currentLthreads.Unlock()
}

func clearCurrentLthread(gid uint64) {
	currentLthreads.Lock()
	delete(currentLthreads.m, gid)
	currentLthreads.Unlock()
}

func setCurrentSched(gid uint64, s *Sched) {
	currentScheds.Lock()
	currentScheds.m[gid] = s
	currentScheds.Unlock()
}

func clearCurrentSched(gid uint64) {
	currentScheds.Lock()
	delete(currentScheds.m, gid)
	currentScheds.Unlock()
}

func lookupSched(gid uint64) *Sched {
	currentScheds.RLock()
	s := currentScheds.m[gid]
	currentScheds.RUnlock()
	return s
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

package lthread

import (
	"errors"
)

// Standard errors.
var (
	// ErrNotLthread is returned when a primitive that suspends the caller is
	// invoked from a goroutine that is not running an lthread.
	ErrNotLthread = errors.New("lthread: caller is not an lthread")

	// ErrSchedRequired is returned when an operation that needs the current
	// scheduler is invoked from a goroutine with no scheduler bound.
	ErrSchedRequired = errors.New("lthread: no scheduler bound to this goroutine")

	// ErrSchedDone is returned when operations are attempted on a scheduler
	// whose Run loop has already completed and freed its resources.
	ErrSchedDone = errors.New("lthread: scheduler has shut down")

	// ErrFDOutOfRange is returned when a wait is attempted on a file
	// descriptor outside the indexed waiter range.
	ErrFDOutOfRange = errors.New("lthread: fd out of range")

	// ErrInvalidEvent is returned when WaitFor is called with an event that
	// is neither EventRead nor EventWrite.
	ErrInvalidEvent = errors.New("lthread: event must be EventRead or EventWrite")

	// ErrPollerClosed is returned when the poller is used after close.
	ErrPollerClosed = errors.New("lthread: poller closed")
)

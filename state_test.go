package lthread

import (
	"testing"
)

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateNew:            "New",
		StateReady:          "Ready",
		StateRunning:        "Running",
		StateWaitRead:       "WaitRead",
		StateWaitWrite:      "WaitWrite",
		StateSleeping:       "Sleeping",
		StateLocked:         "Locked",
		StateComputePending: "ComputePending",
		StateCompute:        "Compute",
		StateExpired:        "Expired",
		StateFDEOF:          "FDEOF",
		StateExited:         "Exited",
		State(255):          "Unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestWaitResultString(t *testing.T) {
	for res, want := range map[WaitResult]string{
		WaitReady:       "Ready",
		WaitExpired:     "Expired",
		WaitEOF:         "EOF",
		WaitResult(255): "Unknown",
	} {
		if got := res.String(); got != want {
			t.Errorf("WaitResult(%d).String() = %q, want %q", res, got, want)
		}
	}
}

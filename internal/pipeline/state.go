package pipeline

import "sync/atomic"

// State is the lifecycle stage of a decode session.
type State int32

const (
	StateInit State = iota
	StateScanning
	StateReconstructing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateScanning:
		return "SCANNING"
	case StateReconstructing:
		return "RECONSTRUCTING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// stateMachine enforces INIT → SCANNING → RECONSTRUCTING → DONE|FAILED.
type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) get() State { return State(m.v.Load()) }

// advance moves to next if it is a legal successor of the current state.
func (m *stateMachine) advance(next State) bool {
	cur := m.get()
	legal := false
	switch cur {
	case StateInit:
		legal = next == StateScanning
	case StateScanning:
		legal = next == StateReconstructing
	case StateReconstructing:
		legal = next == StateDone || next == StateFailed
	}
	if !legal {
		return false
	}
	return m.v.CompareAndSwap(int32(cur), int32(next))
}

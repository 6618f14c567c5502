package sequencer

import (
	"errors"
	"fmt"
)

// State is a step of the attach sequence.
type State int

const (
	Idle State = iota
	ManagedStarting
	ManagedStopped
	NativeAttaching
	Attached
	Terminated
	Failed
)

var stateNames = [...]string{
	Idle:            "Idle",
	ManagedStarting: "ManagedStarting",
	ManagedStopped:  "ManagedStopped",
	NativeAttaching: "NativeAttaching",
	Attached:        "Attached",
	Terminated:      "Terminated",
	Failed:          "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Reason classifies a failed sequence.
type Reason string

const (
	ManagedStartFailed   Reason = "ManagedStartFailed"
	ProcessIDUnavailable Reason = "ProcessIdUnavailable"
	NativeAttachFailed   Reason = "NativeAttachFailed"
)

// ErrAlreadyRun is returned when Run is called twice on one Sequencer.
var ErrAlreadyRun = errors.New("sequencer already ran")

// Error is a failed attach sequence.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ManagedStartFailed:
		return fmt.Sprintf("the Python debugger failed to start: %v", e.Err)
	case ProcessIDUnavailable:
		return fmt.Sprintf("the Python debugger couldn't send its processId, "+
			"make sure to enter an Issue on the official Python C++ Debug Github about this issue! (%v)", e.Err)
	case NativeAttachFailed:
		return fmt.Sprintf("the C++ debugger failed to attach, the Python session was stopped: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the failure reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return "", false
}

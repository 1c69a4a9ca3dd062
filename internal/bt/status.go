package bt

import (
	"fmt"
)

// Status is the outcome of a single tick.
type Status int

const (
	// Idle is the rest state, before the first tick of an episode and after a halt.
	// A node never reports Idle as the result of Tick.
	Idle Status = iota
	// Running means "not finished yet, tick me again".
	Running
	// Success is terminal for the current execution episode.
	Success
	// Failure is terminal for the current execution episode.
	Failure
)

// String status string constants, shared by the logging and metrics layers.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

func (s Status) String() string {
	switch s {
	case Idle:
		return StatusIdle
	case Running:
		return StatusRunning
	case Success:
		return StatusSuccess
	case Failure:
		return StatusFailure
	default:
		return fmt.Sprintf("unknown status (%d)", int(s))
	}
}

// Completed returns true for Success and Failure.
func (s Status) Completed() bool {
	return s == Success || s == Failure
}

// ParseStatus converts one of the status string constants back into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case StatusIdle:
		return Idle, nil
	case StatusRunning:
		return Running, nil
	case StatusSuccess:
		return Success, nil
	case StatusFailure:
		return Failure, nil
	default:
		return Idle, fmt.Errorf("invalid status %q", s)
	}
}

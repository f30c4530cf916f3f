package timer

import "time"

// EventType identifies a timer notification.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventPhaseChange EventType = "phase_change"
)

// Event is sent to subscribers after the timer changes.
type Event struct {
	Type EventType
	// From and Transitions are set for phase_change events. Several phase
	// changes made by a single tick arrive as one event.
	From        Phase
	Transitions int
	State       State
	At          time.Time
}

// Package timer implements a work/break countdown whose progress is derived from
// wall-clock timestamps rather than from how often it is ticked.
package timer

import (
	"fmt"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
)

// Phase is the timer's current mode.
type Phase string

const (
	PhaseWork  Phase = "WORK"
	PhaseBreak Phase = "BREAK"
)

// Other returns the phase that follows p.
func (p Phase) Other() Phase {
	if p == PhaseWork {
		return PhaseBreak
	}
	return PhaseWork
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseWork || p == PhaseBreak
}

// State is a complete timer state. LastTick is the zero time while paused.
type State struct {
	WorkMinutes  int
	BreakMinutes int
	SecondsLeft  int
	Phase        Phase
	Running      bool
	LastTick     time.Time
}

// NewState returns a paused timer at the start of a work phase.
func NewState(workMinutes, breakMinutes int) State {
	return State{
		WorkMinutes:  workMinutes,
		BreakMinutes: breakMinutes,
		SecondsLeft:  workMinutes * 60,
		Phase:        PhaseWork,
	}
}

// PhaseSeconds returns the configured length of phase p in seconds.
func (s State) PhaseSeconds(p Phase) int {
	if p == PhaseBreak {
		return s.BreakMinutes * 60
	}
	return s.WorkMinutes * 60
}

// maxSeconds is the upper bound of SecondsLeft.
func (s State) maxSeconds() int {
	return max(s.WorkMinutes, s.BreakMinutes) * 60
}

// Validate checks the state invariants.
func (s State) Validate() error {
	if s.WorkMinutes <= 0 {
		return errors.NewNonPositiveDuration("workMinutes", s.WorkMinutes)
	}
	if s.BreakMinutes <= 0 {
		return errors.NewNonPositiveDuration("breakMinutes", s.BreakMinutes)
	}
	if !s.Phase.Valid() {
		return errors.NewValidation(fmt.Sprintf("phase must be WORK or BREAK, got %q", s.Phase))
	}
	if s.SecondsLeft < 0 || s.SecondsLeft > s.maxSeconds() {
		return errors.NewValidation(fmt.Sprintf("secondsLeft %d out of range [0, %d]", s.SecondsLeft, s.maxSeconds()))
	}
	if s.Running == s.LastTick.IsZero() {
		return errors.NewValidation("lastTickTimestamp must be set exactly when running")
	}
	return nil
}

// Display formats SecondsLeft as m:ss.
func (s State) Display() string {
	return fmt.Sprintf("%d:%02d", s.SecondsLeft/60, s.SecondsLeft%60)
}

// Snapshot is the persisted form of State.
type Snapshot struct {
	WorkMinutes       int    `json:"workMinutes"`
	BreakMinutes      int    `json:"breakMinutes"`
	SecondsLeft       int    `json:"secondsLeft"`
	Phase             Phase  `json:"phase"`
	Running           bool   `json:"running"`
	LastTickTimestamp *int64 `json:"lastTickTimestamp"` // unix milliseconds
}

// Snapshot converts s to its persisted form.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		WorkMinutes:  s.WorkMinutes,
		BreakMinutes: s.BreakMinutes,
		SecondsLeft:  s.SecondsLeft,
		Phase:        s.Phase,
		Running:      s.Running,
	}
	if !s.LastTick.IsZero() {
		ms := s.LastTick.UnixMilli()
		snap.LastTickTimestamp = &ms
	}
	return snap
}

// FromSnapshot rebuilds a State and checks its invariants.
func FromSnapshot(snap Snapshot) (State, error) {
	s := State{
		WorkMinutes:  snap.WorkMinutes,
		BreakMinutes: snap.BreakMinutes,
		SecondsLeft:  snap.SecondsLeft,
		Phase:        snap.Phase,
		Running:      snap.Running,
	}
	if snap.LastTickTimestamp != nil {
		s.LastTick = time.UnixMilli(*snap.LastTickTimestamp)
	}
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	return s, nil
}

// Status is State as reported to clients: the snapshot plus an m:ss display.
type Status struct {
	Snapshot
	Display string `json:"display"`
}

// Status returns s as reported to clients.
func (s State) Status() Status {
	return Status{Snapshot: s.Snapshot(), Display: s.Display()}
}

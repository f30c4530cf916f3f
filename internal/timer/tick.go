package timer

import "time"

// Transition describes the phase changes made by one tick.
// Count is 0 when the phase did not change.
type Transition struct {
	Count int
	From  Phase
	To    Phase
}

// Tick advances s to now. Only whole elapsed seconds are consumed: LastTick moves
// forward by exactly that many seconds, so the fractional remainder counts toward
// the next tick. Time left over when a phase ends carries into the following
// phase, which makes one tick after k seconds equal to k one-second ticks.
func Tick(s State, now time.Time) (State, Transition) {
	if !s.Running || s.LastTick.IsZero() {
		return s, Transition{}
	}
	elapsed := int(now.Sub(s.LastTick) / time.Second)
	if elapsed <= 0 {
		return s, Transition{}
	}

	next := s
	next.LastTick = s.LastTick.Add(time.Duration(elapsed) * time.Second)
	tr := Transition{From: s.Phase}

	flip := func() {
		next.Phase = next.Phase.Other()
		next.SecondsLeft = next.PhaseSeconds(next.Phase)
		tr.Count++
	}

	// A phase already at zero ends before any time is consumed.
	if next.SecondsLeft == 0 {
		flip()
	}

	remaining := elapsed
	if remaining >= next.SecondsLeft {
		remaining -= next.SecondsLeft
		flip()

		// Skip whole work+break cycles; each one is two transitions.
		if cycle := next.PhaseSeconds(PhaseWork) + next.PhaseSeconds(PhaseBreak); remaining >= cycle {
			tr.Count += 2 * (remaining / cycle)
			remaining %= cycle
		}
		for remaining >= next.SecondsLeft {
			remaining -= next.SecondsLeft
			flip()
		}
	}
	next.SecondsLeft -= remaining

	if tr.Count == 0 {
		return next, Transition{}
	}
	tr.To = next.Phase
	return next, tr
}

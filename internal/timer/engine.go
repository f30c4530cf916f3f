package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/persist"
)

// Engine owns the timer state and writes a snapshot after every change.
// It is not safe for concurrent mutation; callers serialise commands.
type Engine struct {
	gateway persist.Gateway
	report  persist.ErrorReporter
	now     func() time.Time
	state   State

	mu     sync.Mutex
	events []chan Event
}

// New returns an engine holding a fresh paused timer.
func New(gateway persist.Gateway, workMinutes, breakMinutes int) *Engine {
	return &Engine{
		gateway: gateway,
		report:  persist.LogReporter,
		now:     time.Now,
		state:   NewState(workMinutes, breakMinutes),
	}
}

// SetClock replaces the wall clock used by Start and Tick.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetReporter replaces the handler for rejected snapshot saves.
func (e *Engine) SetReporter(report persist.ErrorReporter) {
	e.report = report
}

// Subscribe registers a new observer channel. Slow subscribers miss events.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.events = append(e.events, ch)
	e.mu.Unlock()
	return ch
}

// Load restores the persisted timer. Without a snapshot the current state is kept.
// A snapshot that cannot be parsed or breaks an invariant is rejected with a
// PARSE_ERROR and the current state is kept.
func (e *Engine) Load(ctx context.Context) error {
	raw, ok, err := e.gateway.Load(ctx, persist.KeyTimer)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return errors.NewParse(fmt.Sprintf("timer snapshot: %v", err))
	}
	s, err := FromSnapshot(snap)
	if err != nil {
		return errors.NewParse(fmt.Sprintf("timer snapshot: %v", err))
	}
	e.state = s
	return nil
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Start resumes the countdown from now. No-op if already running.
func (e *Engine) Start(ctx context.Context) {
	if e.state.Running {
		return
	}
	e.state.Running = true
	e.state.LastTick = e.now()
	e.commit(ctx)
}

// Stop pauses the countdown.
func (e *Engine) Stop(ctx context.Context) {
	if !e.state.Running {
		return
	}
	e.state.Running = false
	e.state.LastTick = time.Time{}
	e.commit(ctx)
}

// Reset stops the timer and rewinds to the start of a work phase.
func (e *Engine) Reset(ctx context.Context) {
	e.state = NewState(e.state.WorkMinutes, e.state.BreakMinutes)
	e.commit(ctx)
}

// SetWorkMinutes changes the work phase length. The current countdown is left
// alone unless it exceeds the new maximum phase length.
func (e *Engine) SetWorkMinutes(ctx context.Context, n int) error {
	if n <= 0 {
		return errors.NewNonPositiveDuration("workMinutes", n)
	}
	e.state.WorkMinutes = n
	e.clamp()
	e.commit(ctx)
	return nil
}

// SetBreakMinutes changes the break phase length, like SetWorkMinutes.
func (e *Engine) SetBreakMinutes(ctx context.Context, n int) error {
	if n <= 0 {
		return errors.NewNonPositiveDuration("breakMinutes", n)
	}
	e.state.BreakMinutes = n
	e.clamp()
	e.commit(ctx)
	return nil
}

func (e *Engine) clamp() {
	if limit := e.state.maxSeconds(); e.state.SecondsLeft > limit {
		e.state.SecondsLeft = limit
	}
}

// Tick advances the countdown to the current wall-clock time. Nothing is
// written when no whole second has elapsed.
func (e *Engine) Tick(ctx context.Context) Transition {
	next, tr := Tick(e.state, e.now())
	if next.LastTick.Equal(e.state.LastTick) {
		return tr
	}
	e.state = next
	e.commit(ctx)
	if tr.Count > 0 {
		e.emit(Event{
			Type:        EventPhaseChange,
			From:        tr.From,
			Transitions: tr.Count,
			State:       next,
			At:          e.now(),
		})
	}
	return tr
}

// Apply dispatches cmd to the matching operation.
func (e *Engine) Apply(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case Start:
		e.Start(ctx)
	case Stop:
		e.Stop(ctx)
	case Reset:
		e.Reset(ctx)
	case TickNow:
		e.Tick(ctx)
	case SetWorkMinutes:
		return e.SetWorkMinutes(ctx, c.N)
	case SetBreakMinutes:
		return e.SetBreakMinutes(ctx, c.N)
	default:
		return fmt.Errorf("timer: unknown command %T", cmd)
	}
	return nil
}

// commit saves the current state and notifies subscribers.
func (e *Engine) commit(ctx context.Context) {
	persist.SaveOrReport(ctx, e.gateway, persist.KeyTimer, e.state.Snapshot(), e.report)
	e.emit(Event{Type: EventStateChange, State: e.state, At: e.now()})
}

func (e *Engine) emit(event Event) {
	e.mu.Lock()
	events := append([]chan Event(nil), e.events...)
	e.mu.Unlock()
	for _, ch := range events {
		select {
		case ch <- event:
		default:
		}
	}
}

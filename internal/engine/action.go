// Package engine drives virtual users through scenario actions, threading
// the immutable session value through each step and notifying the
// termination coordinator when a user finishes.
package engine

import (
	"context"
	"errors"
	"time"

	"surge/internal/session"
)

// errInterrupted unwinds a scenario back to the retry block whose
// interrupt handler matched. Composite actions re-balance their own
// session stacks on the way out.
var errInterrupted = errors.New("engine: scenario interrupted")

// Scenario is a named sequence of actions executed once per virtual user.
type Scenario struct {
	Name    string
	Actions []Action
}

// Action is one executable scenario step: session in, session out.
type Action interface {
	Name() string
	Execute(ctx context.Context, s session.Session) (session.Session, error)
}

// ExecFunc is the body of a leaf step. A returned error fails the current
// nesting level; it does not abort the scenario.
type ExecFunc func(ctx context.Context, s session.Session) (session.Session, error)

// Exec wraps a function as a leaf action.
func Exec(name string, fn ExecFunc) Action {
	return execAction{name: name, fn: fn}
}

type execAction struct {
	name string
	fn   ExecFunc
}

func (a execAction) Name() string { return a.name }

func (a execAction) Execute(ctx context.Context, s session.Session) (session.Session, error) {
	ns, err := a.fn(ctx, s)
	if err != nil {
		// A step failure is run data, not an engine error.
		return ns.MarkFailed(), nil
	}
	return ns, nil
}

// Group nests actions in a named block whose failure propagates to the
// enclosing level on exit.
func Group(name string, actions ...Action) Action {
	return groupAction{name: name, actions: actions}
}

type groupAction struct {
	name    string
	actions []Action
}

func (a groupAction) Name() string { return a.name }

func (a groupAction) Execute(ctx context.Context, s session.Session) (session.Session, error) {
	s = s.EnterGroup(a.name)
	s, err := runSequence(ctx, s, a.actions)
	// Always exit so the stacks stay balanced, even while an interrupt or
	// cancellation unwinds through this block.
	return s.ExitGroup(), err
}

// TryMax retries its body up to max attempts while the attempt fails. The
// block's failure reaches the enclosing level only after the last attempt.
func TryMax(name string, max int, actions ...Action) Action {
	if max < 1 {
		panic("engine: TryMax needs at least one attempt")
	}
	return tryMaxAction{name: name, max: max, actions: actions}
}

type tryMaxAction struct {
	name    string
	max     int
	actions []Action
}

func (a tryMaxAction) Name() string { return a.name }

func (a tryMaxAction) Execute(ctx context.Context, s session.Session) (session.Session, error) {
	handler := session.Handler{
		When: func(se session.Session) bool { return se.BlockStatus() == session.Failed },
		Then: func(se session.Session) session.Session { return se },
	}

	for attempt := 1; ; attempt++ {
		s = s.EnterTryMax(handler)
		var err error
		s, err = runSequence(ctx, s, a.actions)
		if errors.Is(err, errInterrupted) {
			s, err = s.Interrupt()
			if err != nil {
				// Matched in runSequence, so the chain must still apply.
				panic(err)
			}
		} else if err != nil {
			return s.ExitTryMax(), err
		}

		if s.BlockStatus() == session.Failed && attempt < a.max {
			// Clear this attempt's failure before popping the level so
			// nothing propagates, then retry.
			s = s.ResetStatus().ExitTryMax()
			continue
		}
		return s.ExitTryMax(), nil
	}
}

// Loop repeats its body a fixed number of times under the given loop
// counter identifier.
func Loop(counterID string, times int, actions ...Action) Action {
	return loopAction{counterID: counterID, times: times, actions: actions}
}

type loopAction struct {
	counterID string
	times     int
	actions   []Action
}

func (a loopAction) Name() string { return a.counterID }

func (a loopAction) Execute(ctx context.Context, s session.Session) (session.Session, error) {
	if a.times <= 0 {
		return s, nil
	}
	var err error
	for i := 0; i < a.times; i++ {
		s = s.EnterLoop(a.counterID)
		s, err = runSequence(ctx, s, a.actions)
		if err != nil {
			break
		}
	}
	return s.ExitLoop(), err
}

// Pause waits for the given duration, compensated by the session's
// accumulated drift so paced scenarios do not slip over time.
func Pause(d time.Duration) Action {
	return pauseAction{d: d}
}

type pauseAction struct {
	d time.Duration
}

func (a pauseAction) Name() string { return "pause" }

func (a pauseAction) Execute(ctx context.Context, s session.Session) (session.Session, error) {
	want := a.d - s.Drift
	if want <= 0 {
		// The whole pause is absorbed by earlier oversleep.
		s.Drift = -want
		return s, nil
	}
	start := time.Now()
	timer := time.NewTimer(want)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.Drift = time.Since(start) - want
		return s, nil
	case <-ctx.Done():
		return s, ctx.Err()
	}
}

// runSequence executes actions in order, short-circuiting when the
// context is cancelled or an interrupt handler matches the session.
func runSequence(ctx context.Context, s session.Session, actions []Action) (session.Session, error) {
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		var err error
		s, err = a.Execute(ctx, s)
		if err != nil {
			return s, err
		}
		if s.ShouldInterrupt() {
			return s, errInterrupted
		}
	}
	return s, nil
}

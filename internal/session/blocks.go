package session

import (
	"errors"
	"time"
)

// ErrNoInterrupt indicates Interrupt was called with no matching handler.
// Callers must check ShouldInterrupt first.
var ErrNoInterrupt = errors.New("no interrupt handler defined for session")

// GroupBlock is one entry of the group stack.
type GroupBlock struct {
	Name      string
	EnteredAt time.Time
}

// Handler is one entry of the interrupt chain: a guarded abort action,
// defined only for sessions its predicate matches.
type Handler struct {
	When func(Session) bool
	Then func(Session) Session
}

// EnterGroup opens a named block: one group entry, one fresh status level.
func (s Session) EnterGroup(name string) Session {
	gs := make([]GroupBlock, len(s.groupStack)+1)
	copy(gs, s.groupStack)
	gs[len(gs)-1] = GroupBlock{Name: name, EnteredAt: time.Now()}
	s.groupStack = gs
	s.statusStack = append(copyStatuses(s.statusStack), Passed)
	return s
}

// ExitGroup closes the innermost group. A failure recorded inside the group
// propagates one level up. Calling it without a matching EnterGroup is a
// bug in the scenario engine and panics.
func (s Session) ExitGroup() Session {
	if len(s.groupStack) == 0 || len(s.statusStack) < 2 {
		panic("session: ExitGroup without matching EnterGroup")
	}
	if len(s.groupStack) == 1 {
		s.groupStack = nil
	} else {
		gs := make([]GroupBlock, len(s.groupStack)-1)
		copy(gs, s.groupStack[:len(s.groupStack)-1])
		s.groupStack = gs
	}
	s.statusStack = popStatus(s.statusStack)
	return s
}

// GroupPath returns the names of the currently open groups, outermost
// first.
func (s Session) GroupPath() []string {
	if len(s.groupStack) == 0 {
		return nil
	}
	names := make([]string, len(s.groupStack))
	for i, g := range s.groupStack {
		names[i] = g.Name
	}
	return names
}

// EnterTryMax opens a bounded-retry block: registers its interrupt handler
// and a fresh status level.
func (s Session) EnterTryMax(h Handler) Session {
	s.interruptStack = pushHandler(s.interruptStack, h)
	s.statusStack = append(copyStatuses(s.statusStack), Passed)
	return s
}

// ExitTryMax closes the innermost retry block with the same status
// propagation rule as ExitGroup.
func (s Session) ExitTryMax() Session {
	if len(s.interruptStack) == 0 || len(s.statusStack) < 2 {
		panic("session: ExitTryMax without matching EnterTryMax")
	}
	s.interruptStack = popHandlers(s.interruptStack)
	s.statusStack = popStatus(s.statusStack)
	return s
}

// EnterInterruptable registers an interrupt handler without opening a
// status level.
func (s Session) EnterInterruptable(h Handler) Session {
	s.interruptStack = pushHandler(s.interruptStack, h)
	return s
}

// ExitInterruptable removes the innermost interrupt handler.
func (s Session) ExitInterruptable() Session {
	if len(s.interruptStack) == 0 {
		panic("session: ExitInterruptable without matching EnterInterruptable")
	}
	s.interruptStack = popHandlers(s.interruptStack)
	return s
}

// ShouldInterrupt reports whether any registered handler, searched
// innermost to outermost, matches the current session.
func (s Session) ShouldInterrupt() bool {
	return s.matchHandler() != nil
}

// Interrupt applies the innermost matching handler's abort action. It
// returns ErrNoInterrupt when no handler is registered or none matches.
func (s Session) Interrupt() (Session, error) {
	h := s.matchHandler()
	if h == nil {
		return s, ErrNoInterrupt
	}
	return h.Then(s), nil
}

// matchHandler scans the chain innermost-first and returns the first
// handler whose predicate matches, or nil.
func (s Session) matchHandler() *Handler {
	for i := len(s.interruptStack) - 1; i >= 0; i-- {
		if s.interruptStack[i].When(s) {
			return &s.interruptStack[i]
		}
	}
	return nil
}

func pushHandler(hs []Handler, h Handler) []Handler {
	out := make([]Handler, len(hs)+1)
	copy(out, hs)
	out[len(out)-1] = h
	return out
}

func popHandlers(hs []Handler) []Handler {
	if len(hs) == 1 {
		return nil
	}
	out := make([]Handler, len(hs)-1)
	copy(out, hs[:len(hs)-1])
	return out
}

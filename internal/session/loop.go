package session

import "time"

// TimestampPrefix derives the attribute key holding a loop's entry time
// from its counter identifier.
const TimestampPrefix = "timestamp."

// EnterLoop begins an iteration of the loop identified by counterID.
//
// Re-entering the loop that is already innermost is the next iteration of
// the same loop: the stored counter increments and the stack does not grow.
// Any other identifier starts a new (possibly nested) loop: the counter
// initializes to 0, the entry time is recorded under TimestampPrefix+id,
// and the identifier is pushed.
func (s Session) EnterLoop(counterID string) Session {
	if n := len(s.counterStack); n > 0 && s.counterStack[n-1] == counterID {
		return s.SetAttribute(counterID, s.attributes[counterID].(int)+1)
	}
	s = s.SetAttributes(map[string]any{
		counterID:                   0,
		TimestampPrefix + counterID: time.Now(),
	})
	cs := make([]string, len(s.counterStack)+1)
	copy(cs, s.counterStack)
	cs[len(cs)-1] = counterID
	s.counterStack = cs
	return s
}

// ExitLoop ends the innermost loop, removing both its counter attribute
// and its derived timestamp attribute. Calling it with no active loop is a
// bug in the scenario engine and panics.
func (s Session) ExitLoop() Session {
	n := len(s.counterStack)
	if n == 0 {
		panic("session: ExitLoop without matching EnterLoop")
	}
	id := s.counterStack[n-1]
	s = s.RemoveAttribute(id).RemoveAttribute(TimestampPrefix + id)
	if n == 1 {
		s.counterStack = nil
	} else {
		cs := make([]string, n-1)
		copy(cs, s.counterStack[:n-1])
		s.counterStack = cs
	}
	return s
}

// Counter returns the current iteration number of the loop identified by
// counterID (0 on the first iteration).
func (s Session) Counter(counterID string) (int, error) {
	return Attribute[int](s, counterID)
}

// LoopEnteredAt returns when the loop identified by counterID was first
// entered.
func (s Session) LoopEnteredAt(counterID string) (time.Time, error) {
	return Attribute[time.Time](s, TimestampPrefix+counterID)
}

package session

// Status is the two-valued outcome tracked at every nesting level of a
// virtual user's execution.
type Status int8

const (
	Passed Status = iota
	Failed
)

func (st Status) String() string {
	if st == Failed {
		return "failed"
	}
	return "passed"
}

// MarkFailed records a failure at the current (innermost) nesting level.
// Idempotent: marking an already-failed level is a no-op.
func (s Session) MarkFailed() Session {
	if s.statusStack[len(s.statusStack)-1] == Failed {
		return s
	}
	st := copyStatuses(s.statusStack)
	st[len(st)-1] = Failed
	s.statusStack = st
	return s
}

// ResetStatus clears a failure at the current nesting level only. Failures
// recorded at deeper (already exited) or outer levels are untouched, so the
// overall Status can remain Failed after a reset.
func (s Session) ResetStatus() Session {
	if s.statusStack[len(s.statusStack)-1] == Passed {
		return s
	}
	st := copyStatuses(s.statusStack)
	st[len(st)-1] = Passed
	s.statusStack = st
	return s
}

// Status reports the overall outcome: Failed if any nesting level has
// recorded a failure, not just the innermost one.
func (s Session) Status() Status {
	for _, st := range s.statusStack {
		if st == Failed {
			return Failed
		}
	}
	return Passed
}

// BlockStatus reports the outcome of the innermost block only. Retry blocks
// use it to decide whether the current attempt needs another try.
func (s Session) BlockStatus() Status {
	return s.statusStack[len(s.statusStack)-1]
}

func copyStatuses(st []Status) []Status {
	out := make([]Status, len(st))
	copy(out, st)
	return out
}

// popStatus removes the innermost status entry. A failure at the popped
// level propagates one level up: the new innermost entry becomes Failed.
func popStatus(st []Status) []Status {
	out := make([]Status, len(st)-1)
	copy(out, st[:len(st)-1])
	if st[len(st)-1] == Failed {
		out[len(out)-1] = Failed
	}
	return out
}

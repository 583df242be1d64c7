// Package sink provides flush-capable result writers. Each sink buffers
// per-user records during the run and durably writes them when the
// termination coordinator requests a flush.
package sink

import (
	"context"
	"time"

	"surge/internal/session"
)

// Record is the terminal result of one virtual user's scenario execution.
type Record struct {
	RunID    string         `json:"run_id"`
	Scenario string         `json:"scenario"`
	UserID   int64          `json:"user_id"`
	Status   session.Status `json:"-"`
	Outcome  string         `json:"status"`
	Start    time.Time      `json:"start"`
	Duration time.Duration  `json:"duration_ns"`
}

// NewRecord builds the record for a finished user.
func NewRecord(runID string, s session.Session, duration time.Duration) Record {
	st := s.Status()
	return Record{
		RunID:    runID,
		Scenario: s.Scenario,
		UserID:   s.UserID,
		Status:   st,
		Outcome:  st.String(),
		Start:    s.StartDate,
		Duration: duration,
	}
}

// Sink accepts user records during the run and flushes them at the end.
// Record must be safe for concurrent use; Flush must be idempotent.
type Sink interface {
	Record(Record)
	Flush(ctx context.Context) error
}

package sink

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"surge/internal/session"
)

// Console aggregates pass/fail counts during the run and logs a one-line
// summary when flushed.
type Console struct {
	log zerolog.Logger

	mu      sync.Mutex
	passed  int
	failed  int
	total   time.Duration
	flushed bool
}

// NewConsole creates a console summary sink logging through log.
func NewConsole(log zerolog.Logger) *Console {
	return &Console{log: log.With().Str("sink", "console").Logger()}
}

func (s *Console) Record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == session.Passed {
		s.passed++
	} else {
		s.failed++
	}
	s.total += r.Duration
}

// Flush logs the run summary. Idempotent.
func (s *Console) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	s.flushed = true

	users := s.passed + s.failed
	ev := s.log.Info().
		Int("users", users).
		Int("passed", s.passed).
		Int("failed", s.failed)
	if users > 0 {
		ev = ev.Dur("meanDuration", s.total/time.Duration(users))
	}
	ev.Msg("run summary")
	return nil
}

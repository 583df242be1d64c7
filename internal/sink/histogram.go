package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog"
)

// Histogram records per-user scenario durations in an HDR histogram and
// logs the latency distribution when flushed.
type Histogram struct {
	log zerolog.Logger

	mu      sync.Mutex
	hist    *hdrhistogram.Histogram
	dropped int
	flushed bool
}

// NewHistogram creates a latency sink tracking durations up to max with
// the given number of significant figures (1-5).
func NewHistogram(log zerolog.Logger, max time.Duration, sigFigs int) *Histogram {
	return &Histogram{
		log:  log.With().Str("sink", "histogram").Logger(),
		hist: hdrhistogram.New(1, max.Microseconds(), sigFigs),
	}
}

func (s *Histogram) Record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hist.RecordValue(r.Duration.Microseconds()); err != nil {
		// Out-of-range duration; counted rather than lost silently.
		s.dropped++
	}
}

// Flush logs the distribution. Idempotent.
func (s *Histogram) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return nil
	}
	s.flushed = true

	if s.hist.TotalCount() == 0 {
		s.log.Info().Msg("no durations recorded")
		return nil
	}
	s.log.Info().
		Int64("count", s.hist.TotalCount()).
		Str("mean", us(int64(s.hist.Mean()))).
		Str("p50", us(s.hist.ValueAtQuantile(50))).
		Str("p90", us(s.hist.ValueAtQuantile(90))).
		Str("p95", us(s.hist.ValueAtQuantile(95))).
		Str("p99", us(s.hist.ValueAtQuantile(99))).
		Str("max", us(s.hist.Max())).
		Int("dropped", s.dropped).
		Msg("scenario duration distribution")
	return nil
}

// Snapshot returns the recorded count, for observability and tests.
func (s *Histogram) Snapshot() (count int64, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.TotalCount(), s.dropped
}

func us(v int64) string {
	return fmt.Sprintf("%v", time.Duration(v)*time.Microsecond)
}

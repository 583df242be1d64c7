package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"surge/internal/session"
	"surge/internal/sink"
)

// Terminator is the driver's view of the termination coordinator: one
// EndUser notification per finished user per sink kind.
type Terminator interface {
	EndUser()
}

// Driver owns the virtual-user lifecycles of one run: it spawns one
// goroutine per user, runs the scenario with that user's session, and
// performs the end-of-user protocol (deliver the terminal record to every
// sink, then notify the terminator once per sink kind).
type Driver struct {
	runID    string
	scenario Scenario
	sinks    []sink.Sink
	term     Terminator
	pacer    *Pacer
	log      zerolog.Logger

	nextID atomic.Int64
	wg     sync.WaitGroup
}

// NewDriver creates a driver. pacer may be nil for unpaced starts.
func NewDriver(runID string, scenario Scenario, sinks []sink.Sink, term Terminator, pacer *Pacer, log zerolog.Logger) *Driver {
	return &Driver{
		runID:    runID,
		scenario: scenario,
		sinks:    sinks,
		term:     term,
		pacer:    pacer,
		log:      log.With().Str("component", "driver").Str("scenario", scenario.Name).Logger(),
	}
}

// Spawn launches count virtual users. Each user runs the scenario once and
// sends its end-of-user notifications exactly once, whether it passes,
// fails, panics, or is cancelled.
func (d *Driver) Spawn(ctx context.Context, count int) {
	for i := 0; i < count; i++ {
		userID := d.nextID.Add(1)
		d.wg.Add(1)
		go func(id int64) {
			defer d.wg.Done()
			d.runUser(ctx, id)
		}(userID)
	}
}

// Wait blocks until every spawned user has finished.
func (d *Driver) Wait() {
	d.wg.Wait()
}

func (d *Driver) runUser(ctx context.Context, id int64) {
	s := session.New(d.scenario.Name, id)
	start := time.Now()

	// The end-of-user protocol must run exactly once per user, panics
	// included: a lost notification hangs the whole run at shutdown.
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Int64("user", id).Any("panic", r).Msg("scenario panicked")
			s = s.MarkFailed()
		}
		d.finish(s, start)
	}()

	if d.pacer != nil {
		if err := d.pacer.Wait(ctx); err != nil {
			s = s.MarkFailed()
			return
		}
	}

	var err error
	s, err = runSequence(ctx, s, d.scenario.Actions)
	if err != nil && ctx.Err() != nil {
		d.log.Debug().Int64("user", id).Msg("user cancelled")
		s = s.MarkFailed()
	}
}

func (d *Driver) finish(s session.Session, start time.Time) {
	rec := sink.NewRecord(d.runID, s, time.Since(start))
	for _, sk := range d.sinks {
		sk.Record(rec)
		d.term.EndUser()
	}
	d.log.Debug().Int64("user", s.UserID).Stringer("status", s.Status()).Msg("user finished")
}

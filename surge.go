// Package surge wires the execution core of a load test together: the
// virtual-user driver, the attached result sinks and the termination
// coordinator that gates run completion on every sink having durably
// flushed every user's result.
package surge

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"surge/internal/config"
	"surge/internal/engine"
	"surge/internal/sink"
	"surge/internal/termination"
)

// Result summarizes a finished run.
type Result struct {
	RunID string
}

// NewLogger builds the run logger at the configured level.
func NewLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Run executes scenario under cfg and blocks until the run has fully
// terminated: every user finished (or ctx was cancelled, which force
// terminates), every sink flushed, the rendezvous released. A flush
// failure is returned as an error; the run's result data may be
// incomplete in that case.
func Run(ctx context.Context, cfg *config.Config, scenario engine.Scenario, log zerolog.Logger) (Result, error) {
	runID := uuid.NewString()
	log = log.With().Str("run", runID).Logger()
	res := Result{RunID: runID}

	sinks, cleanup, err := buildSinks(cfg, log)
	if err != nil {
		return res, err
	}
	defer cleanup()

	latch := termination.NewLatch(1)
	flushErr := make(chan error, 1)
	term := termination.NewCoordinator(len(sinks), log, func(err error) {
		flushErr <- err
	})
	defer term.Stop()

	if err := term.Initialize(latch, cfg.Users); err != nil {
		return res, fmt.Errorf("initializing terminator: %w", err)
	}
	for _, s := range sinks {
		if err := term.RegisterSink(s); err != nil {
			return res, fmt.Errorf("registering sink: %w", err)
		}
	}

	var pacer *engine.Pacer
	if cfg.PaceRPS > 0 {
		pacer = engine.NewPacer(cfg.PaceRPS)
	}

	driver := engine.NewDriver(runID, scenario, sinks, term, pacer, log)
	log.Info().Int("users", cfg.Users).Str("scenario", scenario.Name).Msg("run starting")
	driver.Spawn(ctx, cfg.Users)

	for {
		select {
		case <-latch.Done():
			driver.Wait()
			log.Info().Msg("run complete")
			return res, nil
		case err := <-flushErr:
			if err != nil {
				driver.Wait()
				return res, fmt.Errorf("flushing result sinks: %w", err)
			}
		case <-ctx.Done():
			log.Warn().Msg("run cancelled, force terminating")
			term.ForceTerminate()
			driver.Wait()
			select {
			case <-latch.Done():
				return res, ctx.Err()
			case err := <-flushErr:
				if err != nil {
					return res, fmt.Errorf("flushing result sinks: %w", err)
				}
				return res, ctx.Err()
			}
		}
	}
}

// buildSinks constructs the configured sink kinds.
func buildSinks(cfg *config.Config, log zerolog.Logger) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	var files []*sink.File

	if cfg.Sinks.Console {
		sinks = append(sinks, sink.NewConsole(log))
	}
	if cfg.Sinks.File != "" {
		f, err := sink.NewFile(cfg.Sinks.File)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, f)
		files = append(files, f)
	}
	if h := cfg.Sinks.Histogram; h != nil {
		sinks = append(sinks, sink.NewHistogram(log, h.MaxDuration, h.SigFigs))
	}

	cleanup := func() {
		for _, f := range files {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "closing results file: %v\n", err)
			}
		}
	}
	return sinks, cleanup, nil
}

// Package termination coordinates the end of a test run: it counts
// outstanding virtual-user completions across every attached result sink,
// runs one flush round when the run has drained (or is force-terminated),
// and releases the run's rendezvous latch once every sink has acknowledged.
package termination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotInitialized indicates a message reached the coordinator before
// Initialize.
var ErrNotInitialized = errors.New("termination: coordinator not initialized")

// Flusher is the coordinator's only view of a result sink: something that
// can be asked to durably flush and acknowledge. Flush must be idempotent
// and safe to invoke once per run.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushObserver receives the outcome of the flush round exactly once.
// A non-nil error means the rendezvous latch was withheld.
type FlushObserver func(err error)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateFlushing
	stateTerminated
)

func (st state) String() string {
	switch st {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	case stateFlushing:
		return "flushing"
	default:
		return "terminated"
	}
}

type initializeMsg struct {
	latch     *Latch
	userCount int
	ack       chan error
}

type registerSinkMsg struct {
	sink Flusher
	ack  chan error
}

type endUserMsg struct{}

type forceTerminateMsg struct{}

type flushDoneMsg struct {
	err error
}

// Coordinator is the single rendezvous point for run termination. It is a
// sequential message processor: one goroutine drains the mailbox, so
// counter decrements and sink registration never race. The flush round is
// the only concurrent work it starts, and its completion comes back
// through the mailbox, so the coordinator keeps accepting (and logging)
// traffic while a flush is in flight.
type Coordinator struct {
	mailbox   chan any
	sinkKinds int
	log       zerolog.Logger
	observer  FlushObserver

	closeOnce sync.Once
	stopped   chan struct{}
}

// NewCoordinator creates and starts a coordinator for a run with the given
// number of attached sink kinds. observer may be nil.
func NewCoordinator(sinkKinds int, log zerolog.Logger, observer FlushObserver) *Coordinator {
	if sinkKinds <= 0 {
		panic("termination: coordinator needs at least one sink kind")
	}
	c := &Coordinator{
		mailbox:   make(chan any, 256),
		sinkKinds: sinkKinds,
		log:       log.With().Str("component", "terminator").Logger(),
		observer:  observer,
		stopped:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Initialize arms the coordinator: the run drains after
// userCount × sinkKinds EndUser notifications, since every sink kind must
// observe every user's completion before results can be considered final.
// It blocks until the coordinator acknowledges.
func (c *Coordinator) Initialize(latch *Latch, userCount int) error {
	ack := make(chan error, 1)
	c.mailbox <- initializeMsg{latch: latch, userCount: userCount, ack: ack}
	return <-ack
}

// RegisterSink attaches a flush-capable sink. Only legal after Initialize.
func (c *Coordinator) RegisterSink(sink Flusher) error {
	ack := make(chan error, 1)
	c.mailbox <- registerSinkMsg{sink: sink, ack: ack}
	return <-ack
}

// EndUser records one observation of a virtual user's completion by one
// sink kind. Fire-and-forget.
func (c *Coordinator) EndUser() {
	c.mailbox <- endUserMsg{}
}

// ForceTerminate starts the flush round immediately, without waiting for
// the remaining users. Fire-and-forget.
func (c *Coordinator) ForceTerminate() {
	c.mailbox <- forceTerminateMsg{}
}

// Stop shuts the mailbox down. No coordinator method may be called after
// Stop returns.
func (c *Coordinator) Stop() {
	c.closeOnce.Do(func() { close(c.mailbox) })
	<-c.stopped
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	st := stateUninitialized
	var latch *Latch
	var remaining int
	var sinks []Flusher

	for msg := range c.mailbox {
		switch m := msg.(type) {
		case initializeMsg:
			if st != stateUninitialized {
				c.log.Error().Stringer("state", st).Msg("duplicate initialize dropped")
				m.ack <- fmt.Errorf("initialize in state %s", st)
				continue
			}
			latch = m.latch
			remaining = m.userCount * c.sinkKinds
			sinks = nil
			st = stateInitialized
			c.log.Debug().Int("users", m.userCount).Int("sinkKinds", c.sinkKinds).
				Int("remaining", remaining).Msg("initialized")
			m.ack <- nil

		case registerSinkMsg:
			if st != stateInitialized {
				c.log.Error().Stringer("state", st).Msg("sink registration dropped")
				m.ack <- ErrNotInitialized
				continue
			}
			sinks = append(sinks, m.sink)
			m.ack <- nil

		case endUserMsg:
			if st != stateInitialized {
				c.log.Debug().Stringer("state", st).Msg("end-of-user notification dropped")
				continue
			}
			if remaining <= 0 {
				c.log.Warn().Msg("end-of-user notification after run drained")
				continue
			}
			remaining--
			if remaining == 0 {
				st = stateFlushing
				c.startFlush(sinks)
			}

		case forceTerminateMsg:
			if st != stateInitialized {
				c.log.Warn().Stringer("state", st).Msg("force terminate dropped")
				continue
			}
			c.log.Info().Int("remaining", remaining).Msg("force terminating")
			st = stateFlushing
			c.startFlush(sinks)

		case flushDoneMsg:
			if st != stateFlushing {
				c.log.Error().Stringer("state", st).Msg("stray flush completion dropped")
				continue
			}
			st = stateTerminated
			if m.err != nil {
				// The latch stays unreleased: reporting a clean run while
				// result data may be lost is worse than hanging the
				// orchestrator, whose watchdog owns run-level timeouts.
				c.log.Error().Err(m.err).Msg("flush round failed, rendezvous withheld")
				if c.observer != nil {
					c.observer(m.err)
				}
				continue
			}
			c.log.Debug().Msg("all sinks flushed, releasing rendezvous")
			latch.CountDown()
			if c.observer != nil {
				c.observer(nil)
			}
		}
	}
}

// startFlush fans a flush request out to every registered sink and posts
// the fan-in result back to the mailbox. Runs off the mailbox goroutine so
// the coordinator stays responsive while sinks drain.
func (c *Coordinator) startFlush(sinks []Flusher) {
	c.log.Debug().Int("sinks", len(sinks)).Msg("starting flush round")
	go func() {
		errs := make([]error, len(sinks))
		var wg sync.WaitGroup
		for i, sink := range sinks {
			wg.Add(1)
			go func(i int, sink Flusher) {
				defer wg.Done()
				errs[i] = sink.Flush(context.Background())
			}(i, sink)
		}
		wg.Wait()
		c.mailbox <- flushDoneMsg{err: errors.Join(errs...)}
	}()
}

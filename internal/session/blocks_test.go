package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingHandler() Handler {
	return Handler{
		When: func(s Session) bool { return s.BlockStatus() == Failed },
		Then: func(s Session) Session { return s },
	}
}

func TestEnterExitGroup_BalancesStacks(t *testing.T) {
	s := New("checkout", 1)

	s = s.EnterGroup("outer")
	s = s.EnterGroup("inner")
	assert.Equal(t, []string{"outer", "inner"}, s.GroupPath())

	s = s.ExitGroup()
	s = s.ExitGroup()
	assert.Nil(t, s.GroupPath())
	assert.Equal(t, Passed, s.Status())
}

func TestExitGroup_PropagatesFailureOneLevelUp(t *testing.T) {
	s := New("checkout", 1).
		EnterGroup("outer").
		EnterGroup("inner").
		MarkFailed()

	s = s.ExitGroup()
	// The parent level now carries the failure even though MarkFailed was
	// never called there.
	assert.Equal(t, Failed, s.BlockStatus())
	assert.Equal(t, Failed, s.Status())

	s = s.ExitGroup()
	assert.Equal(t, Failed, s.Status())
}

func TestMarkFailed_Idempotent(t *testing.T) {
	s := New("checkout", 1).EnterGroup("g")

	once := s.MarkFailed()
	twice := once.MarkFailed()

	assert.True(t, once.Equal(twice))
	assert.Equal(t, Failed, twice.BlockStatus())
}

func TestResetStatus_OnlyAffectsInnermostLevel(t *testing.T) {
	s := New("checkout", 1).
		EnterGroup("outer").
		MarkFailed().
		EnterGroup("inner").
		MarkFailed()

	s = s.ResetStatus()
	assert.Equal(t, Passed, s.BlockStatus())
	// The outer failure still decides the overall status.
	assert.Equal(t, Failed, s.Status())
}

func TestResetStatus_PassedIsNoop(t *testing.T) {
	s := New("checkout", 1)
	assert.True(t, s.Equal(s.ResetStatus()))
}

func TestExitGroup_UnbalancedPanics(t *testing.T) {
	s := New("checkout", 1)
	assert.Panics(t, func() { s.ExitGroup() })
}

func TestTryMax_RoundTripIsNoop(t *testing.T) {
	s := New("checkout", 1).SetAttribute("token", "abc")

	out := s.EnterTryMax(failingHandler()).ExitTryMax()
	assert.True(t, s.Equal(out))
}

func TestExitTryMax_PropagatesFailure(t *testing.T) {
	s := New("checkout", 1).
		EnterTryMax(failingHandler()).
		MarkFailed().
		ExitTryMax()

	assert.Equal(t, Failed, s.Status())
	assert.False(t, s.ShouldInterrupt())
}

func TestShouldInterrupt_MatchesOnlyWhenDefined(t *testing.T) {
	s := New("checkout", 1)
	assert.False(t, s.ShouldInterrupt())

	s = s.EnterTryMax(failingHandler())
	assert.False(t, s.ShouldInterrupt())

	s = s.MarkFailed()
	assert.True(t, s.ShouldInterrupt())
}

func TestInterrupt_NoHandlerFails(t *testing.T) {
	s := New("checkout", 1)

	_, err := s.Interrupt()
	assert.ErrorIs(t, err, ErrNoInterrupt)
}

func TestInterrupt_NoMatchFails(t *testing.T) {
	s := New("checkout", 1).EnterTryMax(failingHandler())

	_, err := s.Interrupt()
	assert.ErrorIs(t, err, ErrNoInterrupt)
}

func TestInterrupt_InnermostHandlerWinsOverOuter(t *testing.T) {
	var fired string
	mark := func(name string) Handler {
		return Handler{
			When: func(Session) bool { return true },
			Then: func(s Session) Session {
				fired = name
				return s
			},
		}
	}

	s := New("checkout", 1).
		EnterInterruptable(mark("outer")).
		EnterInterruptable(mark("inner"))

	_, err := s.Interrupt()
	require.NoError(t, err)
	assert.Equal(t, "inner", fired)

	fired = ""
	s = s.ExitInterruptable()
	_, err = s.Interrupt()
	require.NoError(t, err)
	assert.Equal(t, "outer", fired)
}

func TestEnterInterruptable_DoesNotTouchStatusStack(t *testing.T) {
	s := New("checkout", 1).EnterInterruptable(failingHandler())

	assert.Panics(t, func() { s.ExitGroup() })
}

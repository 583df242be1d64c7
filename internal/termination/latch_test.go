package termination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch_ReleasesAtZero(t *testing.T) {
	l := NewLatch(3)

	l.CountDown()
	l.CountDown()
	select {
	case <-l.Done():
		t.Fatal("latch released early")
	default:
	}

	l.CountDown()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("latch never released")
	}
}

func TestLatch_ExtraCountdownsAreSafe(t *testing.T) {
	l := NewLatch(1)

	l.CountDown()
	l.CountDown() // must not panic or re-close
	assert.Equal(t, 0, l.Pending())
}

func TestLatch_WaitHonorsContext(t *testing.T) {
	l := NewLatch(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatch_ConcurrentCountdowns(t *testing.T) {
	const n = 50
	l := NewLatch(n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.CountDown()
		}()
	}
	wg.Wait()

	require.NoError(t, l.Wait(context.Background()))
}

func TestNewLatch_RejectsNonPositiveCount(t *testing.T) {
	assert.Panics(t, func() { NewLatch(0) })
}

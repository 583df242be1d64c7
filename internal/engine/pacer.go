package engine

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer throttles virtual-user starts to a target rate. A zero rate means
// no pacing.
type Pacer struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewPacer creates a pacer admitting up to perSecond user starts each
// second.
func NewPacer(perSecond int) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(perSecond), max(perSecond, 1)),
	}
}

// Wait blocks until the pacer admits one start or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.RLock()
	limiter := p.limiter
	limit := limiter.Limit()
	p.mu.RUnlock()

	if limit == 0 {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetRate adjusts the admission rate mid-run.
func (p *Pacer) SetRate(perSecond int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiter.SetLimit(rate.Limit(perSecond))
	p.limiter.SetBurst(max(perSecond, 1))
}

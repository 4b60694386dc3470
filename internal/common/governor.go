package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Governor paces outbound calls to an external service. It combines a
// token-bucket limiter (requests per window) with a bounded in-flight
// semaphore. State lives for the duration of one pipeline run; nothing is
// persisted across runs.
//
// Every Acquire either succeeds or returns the context's error; callers are
// never dropped silently. Release must run on every exit path of the
// guarded call:
//
//	if err := gov.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer gov.Release()
type Governor struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewGovernor creates a Governor allowing at most rps requests per second
// (burst of one bucket's worth) and maxInFlight concurrent guarded calls.
func NewGovernor(rps float64, maxInFlight int64) *Governor {
	if rps <= 0 {
		rps = 1
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Governor{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		slots:   semaphore.NewWeighted(maxInFlight),
	}
}

// Acquire blocks until a call is allowed or ctx is done. On success the
// caller holds one in-flight slot and must call Release exactly once.
func (g *Governor) Acquire(ctx context.Context) error {
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	if err := g.waitForQuotaReset(ctx); err != nil {
		g.slots.Release(1)
		return err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.slots.Release(1)
		return err
	}
	return nil
}

// Release returns the in-flight slot taken by Acquire.
func (g *Governor) Release() {
	g.slots.Release(1)
}

// ObserveQuota feeds a remote rate-limit signal (remaining quota and reset
// time) back into the Governor. When the remaining quota runs low, new
// acquires are held until the reset time.
func (g *Governor) ObserveQuota(remaining int, reset time.Time) {
	const lowWater = 5
	if remaining > lowWater || reset.IsZero() {
		return
	}
	g.mu.Lock()
	if reset.After(g.pausedUntil) {
		g.pausedUntil = reset
	}
	g.mu.Unlock()
}

// waitForQuotaReset sleeps out a remote-imposed pause, honoring ctx.
func (g *Governor) waitForQuotaReset(ctx context.Context) error {
	g.mu.Lock()
	until := g.pausedUntil
	g.mu.Unlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Guard runs fn under the Governor, pairing Acquire with Release on every
// exit path including panics.
func (g *Governor) Guard(ctx context.Context, fn func() error) error {
	if fn == nil {
		return errors.New("governor: function cannot be nil")
	}
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

package apiclient

import (
	"context"
	"sync"
	"time"
)

// PrioritySemaphore is the process-global gate described in §4.5/§5:
// chat calls bypass it entirely; compress calls must acquire it, and a
// provider rate-limit signal pauses every future acquisition until the
// retry-after window elapses, pre-empting any compression that is
// currently waiting (an in-flight HTTP call must still be aborted by the
// caller — the semaphore only blocks the *next* acquisition).
type PrioritySemaphore struct {
	mu          sync.Mutex
	pausedUntil time.Time
	waiters     []chan struct{}
}

// NewPrioritySemaphore returns an unpaused semaphore.
func NewPrioritySemaphore() *PrioritySemaphore {
	return &PrioritySemaphore{}
}

// Acquire blocks until the semaphore is not paused, or ctx is done.
// Compress call sites call this before every attempt, including retries
// after a re-queue.
func (p *PrioritySemaphore) Acquire(ctx context.Context) error {
	for {
		p.mu.Lock()
		wait := time.Until(p.pausedUntil)
		if wait <= 0 {
			p.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-ch:
			timer.Stop()
		}
	}
}

// Pause delays every future Acquire call by at least d, used when the
// provider signals rate-limiting (HTTP 429 or equivalent) on any call,
// foreground or background. Extends the pause if already paused further
// out than now+d.
func (p *PrioritySemaphore) Pause(d time.Duration) {
	p.mu.Lock()
	until := time.Now().Add(d)
	if until.After(p.pausedUntil) {
		p.pausedUntil = until
	}
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	// Wake waiters so they recompute the (possibly extended) wait.
	for _, ch := range waiters {
		close(ch)
	}
}

// PausedFor reports the remaining pause duration, zero if not paused.
func (p *PrioritySemaphore) PausedFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d := time.Until(p.pausedUntil); d > 0 {
		return d
	}
	return 0
}

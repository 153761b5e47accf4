package apiclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrioritySemaphoreAcquireUnpaused(t *testing.T) {
	sem := NewPrioritySemaphore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sem.Acquire(ctx))
}

func TestPrioritySemaphorePauseBlocksAcquire(t *testing.T) {
	sem := NewPrioritySemaphore()
	sem.Pause(50 * time.Millisecond)
	require.Greater(t, sem.PausedFor(), time.Duration(0))

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sem.Acquire(ctx))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPrioritySemaphoreAcquireRespectsContextCancellation(t *testing.T) {
	sem := NewPrioritySemaphore()
	sem.Pause(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sem.Acquire(ctx)
	require.Error(t, err)
}

package ingest

import (
	"context"
	"time"
)

// Sleeper is the delay primitive the batch loop uses between AI-backed
// extraction calls. Injecting it keeps the pacing policy testable without
// real timers.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer, returning early with the context's
// error if it is cancelled first.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package client

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
)

// Scheduler handles precise timing for the booking-window opening.
type Scheduler struct {
	// SpinDuration is the duration before target time to switch from sleeping to busy-waiting.
	// Default: 5ms
	SpinDuration time.Duration

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		SpinDuration: 5 * time.Millisecond,
		now:          time.Now,
	}
}

// SleepUntil blocks until the target time is reached or ctx is done.
// It sleeps for the bulk of the wait, then busy-waits for the final
// milliseconds. Returns the drift (actual wake time - target time).
func (s *Scheduler) SleepUntil(ctx context.Context, target time.Time) (time.Duration, error) {
	now := s.now()

	if !now.Before(target) {
		return now.Sub(target), nil
	}

	remaining := target.Sub(now)
	if remaining > s.SpinDuration {
		if err := SleepContext(ctx, remaining-s.SpinDuration); err != nil {
			return 0, err
		}
	}

	for {
		now = s.now()
		if !now.Before(target) {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	return now.Sub(target), nil
}

// LogDrift prints the drift in a readable format
func (s *Scheduler) LogDrift(drift time.Duration) {
	msg := fmt.Sprintf("⏱️  Precision Wake: Drift = %d µs", drift.Microseconds())

	if drift > 1*time.Millisecond {
		log.Println(color.RedString(msg))
	} else {
		log.Println(color.GreenString(msg))
	}
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Booking retry defaults.
const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 10 * time.Second
)

// BookingSubmitter performs a single booking attempt.
type BookingSubmitter interface {
	SubmitBooking(ctx context.Context, session, slotID, date string) (*BookingResult, error)
}

// Booker retries a booking with a fixed delay. The retries absorb the clock
// slack around the instant the provider opens the booking window.
type Booker struct {
	Submitter  BookingSubmitter
	MaxRetries int
	RetryDelay time.Duration

	// Sleep waits between attempts. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnFailure is called after every failed attempt.
	OnFailure func(attempt int, err error)
}

// Book submits the booking up to MaxRetries times and stops at the first
// success. After the last failure it returns a KindRetryExhausted error
// wrapping that failure.
func (b *Booker) Book(ctx context.Context, session, slotID, date string) (*BookingResult, error) {
	if b.Submitter == nil {
		return nil, newError(KindConfig, "prenotazione", "no booking submitter configured", nil)
	}
	maxRetries := b.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := b.RetryDelay
	if delay < 0 {
		delay = 0
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("📨 Prenotazione tentativo %d/%d (slot %s, giorno %s)", attempt, maxRetries, slotID, date)
		res, err := b.Submitter.SubmitBooking(ctx, session, slotID, date)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		lastErr = err
		if b.OnFailure != nil {
			b.OnFailure(attempt, err)
		}
		if !retryable(ctx, err) {
			return nil, &BookingError{
				Kind:    KindRetryExhausted,
				Op:      "prenotazione",
				Message: fmt.Sprintf("stopped after %d of %d attempts", attempt, maxRetries),
				Err:     err,
			}
		}
		if attempt == maxRetries {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, &BookingError{
				Kind:    KindRetryExhausted,
				Op:      "prenotazione",
				Message: fmt.Sprintf("interrupted after %d of %d attempts", attempt, maxRetries),
				Err:     err,
			}
		}
	}

	return nil, &BookingError{
		Kind:    KindRetryExhausted,
		Op:      "prenotazione",
		Message: fmt.Sprintf("all %d attempts failed", maxRetries),
		Err:     lastErr,
	}
}

// retryable reports whether another attempt can change the outcome.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrSafetyTriggered) {
		return false
	}
	return !IsKind(err, KindConfig)
}

package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper waits between attempts. It returns early with ctx.Err() when the
// context is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
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

// NoSleep returns immediately. Tests use it to collapse backoff.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Jitter      time.Duration
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// Attempt records one try of a retried operation.
type Attempt struct {
	Number   int
	Err      error
	Duration time.Duration
	Backoff  time.Duration
}

// Delay returns the wait after the given zero-based attempt:
// Base * 2^attempt + uniform(0, Jitter).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base << uint(attempt)
	if p.Jitter > 0 {
		r := rand.Float64
		if p.Rand != nil {
			r = p.Rand
		}
		d += time.Duration(r() * float64(p.Jitter))
	}
	return d
}

// Run calls fn until it succeeds or MaxAttempts is reached, sleeping Delay
// between attempts but never after the last one. It returns every attempt
// made and the error of the final attempt, or nil on success. A sleeper
// error (cancelled context) stops the loop and is returned.
func (p Policy) Run(ctx context.Context, sleep Sleeper, fn func(ctx context.Context, attempt int) error) ([]Attempt, error) {
	if sleep == nil {
		sleep = Sleep
	}
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}

	attempts := make([]Attempt, 0, limit)
	var lastErr error
	for i := 0; i < limit; i++ {
		start := time.Now()
		err := fn(ctx, i+1)
		a := Attempt{Number: i + 1, Err: err, Duration: time.Since(start)}
		lastErr = err
		if err == nil {
			attempts = append(attempts, a)
			return attempts, nil
		}
		if i == limit-1 {
			attempts = append(attempts, a)
			break
		}
		a.Backoff = p.Delay(i)
		attempts = append(attempts, a)
		if serr := sleep(ctx, a.Backoff); serr != nil {
			return attempts, serr
		}
	}
	return attempts, lastErr
}

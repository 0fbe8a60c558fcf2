package storefront

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries a failed call with exponential backoff
// min(Base * 2^attempt, Max). Attempts counts retries after the first try.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Do runs fn until it succeeds, the attempts run out, ctx is done, or fn
// fails with a not-found error, which no retry can fix.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || errors.Is(err, ErrNotFound) || attempt >= p.Attempts {
			return err
		}

		t := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/utsavlook/booking-functions/internal/model"
)

// BookingTx is the consistent view of the store handed to a transaction
// function. Reads through Get participate in conflict detection; writes
// through Update become visible only if the transaction commits.
type BookingTx interface {
	Get(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
}

// TxFunc is the body of a transaction. Returning a non-nil error aborts
// the transaction and leaves the store unchanged.
type TxFunc func(ctx context.Context, tx BookingTx) error

// RetryPolicy controls how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is used when a store is built with a zero policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    5,
	InitialBackoff: 20 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultRetryPolicy.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// runWithRetry calls attempt until it succeeds, fails with anything other
// than ErrConflict, or the policy runs out of attempts. Non-conflict errors
// are returned exactly as attempt produced them.
func runWithRetry(ctx context.Context, policy RetryPolicy, attempt func() error) error {
	policy = policy.normalized()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialBackoff
	eb.MaxInterval = policy.MaxBackoff

	tries := 0
	var last error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		last = attempt()
		switch {
		case last == nil:
			return struct{}{}, nil
		case errors.Is(last, ErrConflict):
			return struct{}{}, last
		default:
			return struct{}{}, backoff.Permanent(last)
		}
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if last != nil && !errors.Is(last, ErrConflict) {
		return last
	}
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("retries exhausted after %d attempts: %w", tries, err)
	}
	return err
}

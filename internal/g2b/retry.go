package g2b

import (
	"context"
	"time"
)

// Outcome is the typed result of a bounded retry.
type Outcome int

// Retry outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomeExhausted
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "exhausted"
}

// RetryConfig bounds a retried operation.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Retry runs action up to cfg.Attempts times, confirming each attempt with
// the confirm predicate. An attempt counts as successful only when action
// returns nil AND confirm reports true; an action error alone never aborts
// the loop. The last action error is returned alongside OutcomeExhausted so
// callers can decide how loudly to fail.
func Retry(ctx context.Context, cfg RetryConfig, action func(context.Context) error, confirm func(context.Context) bool) (Outcome, error) {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return OutcomeExhausted, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return OutcomeExhausted, err
		}
		if err := action(ctx); err != nil {
			lastErr = err
			continue
		}
		if confirm == nil || confirm(ctx) {
			return OutcomeSuccess, nil
		}
		lastErr = ErrStateUnreachable
	}
	return OutcomeExhausted, lastErr
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/infra/logging"
	"github.com/grand-thief-cash/chaos/app/projects/norns/internal/source"
)

// RetryPolicy retries transient source failures MaxRetries times after a fixed Backoff.
// Any other error is returned on the first attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, Backoff: 61 * time.Second}
}

func (p RetryPolicy) Do(ctx context.Context, what string, op func(ctx context.Context) error) error {
	tries := p.MaxRetries + 1
	if tries < 1 {
		tries = 1
	}
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !errors.Is(err, source.ErrTransientSource) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Backoff)),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.Warn(ctx, "source read failed, cooling down before retry",
				zap.String("what", what),
				zap.Int("attempt", attempt),
				zap.Duration("cool_down", wait),
				zap.Error(err),
			)
		}),
	)
	return err
}

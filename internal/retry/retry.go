package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// Do invokes op and retries failures the classifier marks retryable, waiting
// InitialDelay × BackoffMultiplier^attempt between attempts. Retry-vs-fatal
// policy stays visible at the call site through the injected classifier.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, op func(ctx context.Context) error) error {
	delay := policy.InitialDelay

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= policy.MaxRetries || !retryable(err) {
			return err
		}

		log.Printf("retry: attempt %d failed, retrying in %s: %v", attempt+1, delay, err)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry aborted: %w", sleepErr)
		}
		delay = time.Duration(float64(delay) * policy.BackoffMultiplier)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

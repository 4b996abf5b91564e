// Package retry decides whether a classified failure earns another attempt
// and performs the backoff wait.
package retry

import (
	"context"
	"time"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Decision is the outcome of Decide. Delay is only meaningful when Retry is true.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Controller grants retries based on the ErrorInfo attached to a failure.
// A retry is granted iff the error is retryable and the phase has used fewer
// retries than the error kind allows.
type Controller struct {
	wait func(ctx context.Context, d time.Duration) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithWaitFunc replaces the backoff wait. Tests use it to skip real sleeps.
func WithWaitFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.wait = fn
	}
}

// NewController creates a Controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{wait: Sleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decide returns whether to retry after retryCount previous retries.
func (c *Controller) Decide(info models.ErrorInfo, retryCount int) Decision {
	if !info.CanRetry(retryCount) {
		return Decision{}
	}
	return Decision{Retry: true, Delay: info.RetryDelay}
}

// Wait blocks for d or until ctx is done.
func (c *Controller) Wait(ctx context.Context, d time.Duration) error {
	return c.wait(ctx, d)
}

// Sleep waits for d unless ctx is cancelled first.
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

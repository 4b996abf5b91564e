package orchestrator

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Sink receives every status snapshot of a job in lifecycle order. Publish
// is called from the job's goroutine; a slow sink slows that job down. ctx
// is cancelled when the job is cancelled, and blocking sinks must return then.
type Sink interface {
	Publish(ctx context.Context, status models.JobStatus) error
}

// SinkFunc adapts a plain callback. It must not block.
type SinkFunc func(status models.JobStatus)

func (f SinkFunc) Publish(_ context.Context, status models.JobStatus) error {
	f(status)
	return nil
}

// ChannelSink delivers snapshots over a channel. Sends block until the
// consumer receives or the job is cancelled. The orchestrator never closes it.
type ChannelSink chan models.JobStatus

func (c ChannelSink) Publish(ctx context.Context, status models.JobStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c <- status:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiSink publishes to each sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, status models.JobStatus) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

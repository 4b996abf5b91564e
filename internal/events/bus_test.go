package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(id uuid.UUID, state models.State, progress int) models.JobStatus {
	return models.JobStatus{RequestID: id, State: state, Progress: progress}
}

func TestBusSince(t *testing.T) {
	bus := NewBus(3, 10)
	id := uuid.New()
	bus.Append(status(id, models.StateQueued, 0))
	bus.Append(status(id, models.StateQueued, 15))
	bus.Append(status(id, models.StateGeneratingScript, 30))

	events, ok := bus.Since(id, 1)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Equal(t, models.StateGeneratingScript, events[1].Status.State)
}

func TestBusSequencesArePerRequest(t *testing.T) {
	bus := NewBus(10, 10)
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, int64(1), bus.Append(status(a, models.StateQueued, 0)).Seq)
	assert.Equal(t, int64(2), bus.Append(status(a, models.StateQueued, 15)).Seq)
	assert.Equal(t, int64(1), bus.Append(status(b, models.StateQueued, 0)).Seq)
}

func TestBusCapsHistory(t *testing.T) {
	bus := NewBus(2, 10)
	id := uuid.New()
	bus.Append(status(id, models.StateQueued, 1))
	bus.Append(status(id, models.StateQueued, 2))
	bus.Append(status(id, models.StateQueued, 3))

	events, _ := bus.Since(id, 0)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Status.Progress)
	assert.Equal(t, 3, events[1].Status.Progress)
}

func TestBusEvictsOldestRequest(t *testing.T) {
	bus := NewBus(5, 2)
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	bus.Append(status(first, models.StateQueued, 0))
	bus.Append(status(second, models.StateQueued, 0))
	bus.Append(status(third, models.StateQueued, 0))

	_, ok := bus.Since(first, 0)
	assert.False(t, ok)
	_, ok = bus.Since(third, 0)
	assert.True(t, ok)
}

func TestBusForget(t *testing.T) {
	bus := NewBus(5, 5)
	id := uuid.New()
	require.NoError(t, bus.Publish(context.Background(), status(id, models.StateQueued, 0)))

	bus.Forget(id)
	_, ok := bus.Since(id, 0)
	assert.False(t, ok)
	bus.Forget(id)
}

func TestBusTimestamp(t *testing.T) {
	bus := NewBus(5, 5)
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := status(id, models.StateQueued, 0)
	s.UpdatedAt = at
	assert.Equal(t, at, bus.Append(s).Timestamp)
	assert.False(t, bus.Append(status(id, models.StateQueued, 1)).Timestamp.IsZero())
}

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redmig/internal/domain"
)

func TestPublisherStampsEvents(t *testing.T) {
	pub := NewPublisher(4, nil)
	pub.Emit(context.Background(), Event{Kind: KindRunStarted})

	e := <-pub.Inbox()
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, KindRunStarted, e.Kind)
}

func TestPublisherDropsWhenFull(t *testing.T) {
	dropped := 0
	pub := NewPublisher(1, func() { dropped++ })

	pub.Emit(context.Background(), Event{Kind: KindRecordOutcome})
	pub.Emit(context.Background(), Event{Kind: KindRecordOutcome})
	pub.Emit(context.Background(), Event{Kind: KindRecordOutcome})

	assert.Equal(t, 2, dropped)
}

func TestWorkerDrainsUntilClosed(t *testing.T) {
	store := NewMemory()
	pub := NewPublisher(16, nil)
	worker := NewWorker(store, pub.Inbox())

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	runID := uuid.New()
	for i := 0; i < 5; i++ {
		pub.Emit(context.Background(), Event{
			RunID:    runID,
			Kind:     KindRecordOutcome,
			RecordID: "P-001",
			Status:   domain.StatusConfirmed,
		})
	}
	pub.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after inbox close")
	}

	events, err := store.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestWorkerStopsOnStoreFailure(t *testing.T) {
	pub := NewPublisher(4, nil)
	worker := NewWorker(failingStore{}, pub.Inbox())

	pub.Emit(context.Background(), Event{Kind: KindRecordOutcome})

	err := worker.Run(context.Background())
	assert.Error(t, err)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	pub := NewPublisher(4, nil)
	worker := NewWorker(NewMemory(), pub.Inbox())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, worker.Run(ctx), context.Canceled)
}

func TestMemoryStoreFiltersByRun(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	runA, runB := uuid.New(), uuid.New()
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), RunID: runA, Kind: KindRunStarted}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), RunID: runB, Kind: KindRunStarted}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), RunID: runA, Kind: KindRunFinished}))

	events, err := store.ListByRun(ctx, runA)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindRunStarted, events[0].Kind)
	assert.Equal(t, KindRunFinished, events[1].Kind)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }
func (failingStore) ListByRun(context.Context, uuid.UUID) ([]Event, error) {
	return nil, errors.New("disk full")
}

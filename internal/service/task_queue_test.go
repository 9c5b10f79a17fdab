package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTaskQueueDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewTaskQueue(2, 10, time.Second, nil)
	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue("count", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Close(context.Background()))
	assert.EqualValues(t, 5, done.Load())
	assert.False(t, q.Enqueue("late", func(context.Context) error { return nil }))
	assert.NoError(t, q.Close(context.Background()), "second close is a no-op")
}

func TestTaskQueueDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewTaskQueue(1, 1, time.Second, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, q.Enqueue("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.True(t, q.Enqueue("buffered", func(context.Context) error { return nil }))
	assert.False(t, q.Enqueue("dropped", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Close(context.Background()))
}

func TestTaskQueueSurvivesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewTaskQueue(1, 4, time.Second, nil)
	var ran atomic.Bool
	q.Enqueue("panics", func(context.Context) error { panic("boom") })
	q.Enqueue("errors", func(context.Context) error { return errors.New("agent unreachable") })
	q.Enqueue("after", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, q.Close(context.Background()))
	assert.True(t, ran.Load())
}

func TestTaskQueueCloseDeadlineCancelsTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewTaskQueue(1, 1, time.Minute, nil)
	cancelled := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-cancelled
}

func TestSafeRunRecoversPanic(t *testing.T) {
	err := safeRun(context.Background(), func(context.Context) error { panic("boom") })
	assert.ErrorIs(t, err, errTaskPanicked)

	ran := false
	NewInlineRunner(nil).Enqueue("inline", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

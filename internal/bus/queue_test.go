package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPublishAfterClose(t *testing.T) {
	q := NewQueue(4)
	q.Close()
	require.ErrorIs(t, q.TryPublish(Event{Kind: EventOrderUpdated}), ErrQueueClosed)
	q.Close()
}

func TestTryPublishFullQueue(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{Kind: EventOrderUpdated}))
	require.ErrorIs(t, q.TryPublish(Event{Kind: EventOrderUpdated}), ErrQueueFull)
}

func TestRunDrainsBufferedEventsAfterClose(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.TryPublish(Event{Kind: EventFillApplied}))
	}
	q.Close()

	var got int
	q.Run(context.Background(), func(Event) { got++ })
	assert.Equal(t, 3, got)
}

func TestCloseDuringConcurrentPublish(t *testing.T) {
	q := NewQueue(2)
	go q.Run(context.Background(), func(Event) {})

	// A send racing Close must surface as ErrQueueClosed, never as a send
	// on a closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := q.TryPublish(Event{Kind: EventPositionUpdated})
				if errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}
	q.Close()
	wg.Wait()
}

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_DeliversSnapshotFirst(t *testing.T) {
	b := New(4)
	actionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), actionID, func(_ context.Context, id uuid.UUID) (map[string]any, error) {
		return map[string]any{"status": "draft"}, nil
	})
	require.NoError(t, err)
	defer sub.Close()

	b.Publish(actionID, KindActionStarted, nil)

	snapshot := <-sub.Events()
	require.Equal(t, KindSnapshot, snapshot.Kind)

	started := <-sub.Events()
	require.Equal(t, KindActionStarted, started.Kind)
}

func TestPublish_NeverBlocksOnFullQueue(t *testing.T) {
	b := New(2)
	actionID := uuid.New()

	sub, err := b.Subscribe(context.Background(), actionID, nil)
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(actionID, KindTaskStarted, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}

	foundLag := false
	for len(sub.Events()) > 0 {
		e := <-sub.Events()
		if e.Kind == KindLag {
			foundLag = true
		}
	}
	require.True(t, foundLag, "expected a lag marker after overflowing the queue")
}

func TestSubscribe_IndependentTopics(t *testing.T) {
	b := New(4)
	a1, a2 := uuid.New(), uuid.New()

	sub1, _ := b.Subscribe(context.Background(), a1, nil)
	sub2, _ := b.Subscribe(context.Background(), a2, nil)
	defer sub1.Close()
	defer sub2.Close()

	b.Publish(a1, KindActionStarted, nil)

	require.Len(t, sub1.Events(), 1)
	require.Len(t, sub2.Events(), 0)
}

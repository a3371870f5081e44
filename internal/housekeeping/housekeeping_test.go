package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/store"
)

func TestSweeper_PingsActiveTopicsOnKeepalive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New(8)
	s := store.NewMemory()

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	sub, err := b.Subscribe(ctx, action.ID, nil)
	require.NoError(t, err)
	defer sub.Close()

	sw := New(Config{Store: s, Bus: b})
	sw.cfg.LogRetentionSweep = "@every 1h"
	require.NoError(t, sw.Start(ctx))
	defer sw.Stop()

	// Drive a ping directly rather than waiting 15s for the real ticker.
	for _, id := range b.Topics() {
		b.Publish(id, bus.KindPing, map[string]any{"ts": time.Now()})
	}

	select {
	case e := <-sub.Events():
		require.Equal(t, bus.KindPing, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a ping event")
	}
}

func TestSweeper_TrimsLogsAcrossActions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	tasks, err := s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "p", AgentType: "generic"}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendLog(ctx, domain.LogEntry{
			ID: uuid.New(), TaskID: tasks[0].ID, Level: domain.LogLevelInfo, Message: "x",
		}))
	}

	sw := New(Config{Store: s, Bus: bus.New(8), LogRetentionKeep: 2})
	sw.sweepLogs(ctx)

	logs, err := s.ListLogs(ctx, tasks[0].ID, 100)
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsWithNoFileOrEnv(t *testing.T) {
	l, err := NewLoader("", nil)
	require.NoError(t, err)

	cfg := l.Get()
	require.Equal(t, 8, cfg.MaxConcurrentTasksPerAction)
	require.Equal(t, 3, cfg.TaskRetryMaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.BaseBackoff())
	require.Equal(t, 300*time.Second, cfg.TaskTimeout())
}

func TestLoader_EnvOverridesDefault(t *testing.T) {
	t.Setenv("ORCHEO_MAX_CONCURRENT_TASKS_PER_ACTION", "16")
	l, err := NewLoader("", nil)
	require.NoError(t, err)
	require.Equal(t, 16, l.Get().MaxConcurrentTasksPerAction)
}

func TestLoader_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("planner_max_tasks: 5\n"), 0o644))

	l, err := NewLoader(path, nil)
	require.NoError(t, err)
	require.Equal(t, 5, l.Get().PlannerMaxTasks)

	require.NoError(t, os.WriteFile(path, []byte("planner_max_tasks: 20\n"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.Get().PlannerMaxTasks == 20 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Equal(t, 20, l.Get().PlannerMaxTasks)
}

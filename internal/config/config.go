// Package config loads the engine's configuration options (§6) from
// environment variables and an optional file, with hot-reload on file
// change — grounded in divinesense's cmd/divinesense viper/cobra setup,
// generalized from process-global viper bindings to an instance-scoped
// loader so tests can construct isolated configs.
package config

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every tunable named in the options table (§6).
type Config struct {
	MaxConcurrentTasksPerAction int
	TaskRetryMaxAttempts        int
	TaskRetryBaseBackoffMS      int
	TaskTimeoutSeconds          int
	PlannerMaxTasks             int
	PlannerMaxRetries           int
	EventQueueCapacity          int
	LogRetentionPerTask         int
}

// TaskTimeout is TaskTimeoutSeconds as a time.Duration.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// BaseBackoff is TaskRetryBaseBackoffMS as a time.Duration.
func (c Config) BaseBackoff() time.Duration {
	return time.Duration(c.TaskRetryBaseBackoffMS) * time.Millisecond
}

func defaults() Config {
	return Config{
		MaxConcurrentTasksPerAction: 8,
		TaskRetryMaxAttempts:        3,
		TaskRetryBaseBackoffMS:      500,
		TaskTimeoutSeconds:          300,
		PlannerMaxTasks:             8,
		PlannerMaxRetries:           2,
		EventQueueCapacity:          256,
		LogRetentionPerTask:         1000,
	}
}

// Loader wraps a viper instance bound to the ORCHEO_* environment prefix
// and an optional config file, exposing the live Config through an
// atomic pointer so concurrent readers never observe a torn reload.
type Loader struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	log     *slog.Logger
}

// NewLoader constructs a Loader. configFile may be empty, in which case
// only env vars and defaults apply.
func NewLoader(configFile string, log *slog.Logger) (*Loader, error) {
	if log == nil {
		log = slog.Default()
	}
	v := viper.New()
	d := defaults()
	v.SetDefault("max_concurrent_tasks_per_action", d.MaxConcurrentTasksPerAction)
	v.SetDefault("task_retry_max_attempts", d.TaskRetryMaxAttempts)
	v.SetDefault("task_retry_base_backoff_ms", d.TaskRetryBaseBackoffMS)
	v.SetDefault("task_timeout_seconds", d.TaskTimeoutSeconds)
	v.SetDefault("planner_max_tasks", d.PlannerMaxTasks)
	v.SetDefault("planner_max_retries", d.PlannerMaxRetries)
	v.SetDefault("event_queue_capacity", d.EventQueueCapacity)
	v.SetDefault("log_retention_per_task", d.LogRetentionPerTask)

	v.SetEnvPrefix("orcheo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v, log: log}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.current.Store(cfg)

	if configFile != "" {
		v.WatchConfig()
		v.OnConfigChange(func(_ fsnotify.Event) { l.reload() })
	}
	return l, nil
}

// Get returns the current Config. Safe for concurrent use; callers that
// hold onto the returned value see a consistent snapshot even if a file
// change triggers a reload concurrently.
func (l *Loader) Get() Config {
	return *l.current.Load()
}

func (l *Loader) reload() {
	cfg, err := l.decode()
	if err != nil {
		l.log.Error("config: reload failed, keeping previous values", "error", err)
		return
	}
	l.current.Store(cfg)
	l.log.Info("config: reloaded from file change")
}

func (l *Loader) decode() (*Config, error) {
	cfg := defaults()
	cfg.MaxConcurrentTasksPerAction = l.v.GetInt("max_concurrent_tasks_per_action")
	cfg.TaskRetryMaxAttempts = l.v.GetInt("task_retry_max_attempts")
	cfg.TaskRetryBaseBackoffMS = l.v.GetInt("task_retry_base_backoff_ms")
	cfg.TaskTimeoutSeconds = l.v.GetInt("task_timeout_seconds")
	cfg.PlannerMaxTasks = l.v.GetInt("planner_max_tasks")
	cfg.PlannerMaxRetries = l.v.GetInt("planner_max_retries")
	cfg.EventQueueCapacity = l.v.GetInt("event_queue_capacity")
	cfg.LogRetentionPerTask = l.v.GetInt("log_retention_per_task")
	return &cfg, nil
}

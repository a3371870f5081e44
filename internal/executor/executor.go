// Package executor implements the per-action event-driven scheduler
// (§4.4): ready-set computation over the task DAG, bounded-concurrency
// admission, per-task retry with full-jitter backoff, cooperative
// cancellation and event emission. Adapted from the teacher's worker
// package (claim/execute/retry lifecycle, exponential backoff) fused with
// its orchestrator's run-scoped lifecycle management, generalized from a
// queue-consumer model to an in-process ready-set loop over one DAG.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/graph"
	"github.com/orcheo/engine/internal/store"
	"github.com/orcheo/engine/internal/telemetry"
)

// Default tuning values (§4.4, §5); all overridable via Config.
const (
	DefaultMaxInflight  = 8
	DefaultMaxAttempts  = 3
	DefaultTaskTimeout  = 300 * time.Second
	cancellationGraceMs = 5000
)

// Config wires an Executor to its collaborators.
type Config struct {
	Store    store.Store
	Bus      *bus.Bus
	Registry *agent.Registry

	// Blobs persists artifact bytes outside the relational store (§3).
	// May be nil, in which case artifacts are dropped after minting an
	// id — acceptable for tests that don't exercise artifact output.
	Blobs *store.BlobStore

	MaxInflight int
	MaxAttempts int
	TaskTimeout time.Duration

	BackoffBase time.Duration
	BackoffMax  time.Duration

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.MaxInflight <= 0 {
		c.MaxInflight = DefaultMaxInflight
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Executor runs ready tasks for any number of actions concurrently, one
// scheduling loop per action that currently has a run in progress.
type Executor struct {
	cfg Config

	mu   sync.Mutex
	runs map[uuid.UUID]*actionRun
}

// New constructs an Executor; cfg.Store, cfg.Bus and cfg.Registry must be
// non-nil.
func New(cfg Config) *Executor {
	cfg.setDefaults()
	return &Executor{cfg: cfg, runs: make(map[uuid.UUID]*actionRun)}
}

// actionRun tracks the live state of one action's scheduling loop.
type actionRun struct {
	actionID uuid.UUID
	cancel   context.CancelFunc
	sem      *semaphore.Weighted
	wake     chan struct{}
	wg       sync.WaitGroup

	mu          sync.Mutex
	taskCancels map[uuid.UUID]context.CancelFunc
}

func (r *actionRun) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *actionRun) registerCancel(taskID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	r.taskCancels[taskID] = cancel
	r.mu.Unlock()
}

func (r *actionRun) unregisterCancel(taskID uuid.UUID) {
	r.mu.Lock()
	delete(r.taskCancels, taskID)
	r.mu.Unlock()
}

// cancelTask signals cancellation for a single in-flight task, if any; used
// by the mutation engine when a task is invalidated mid-flight (§4.5).
func (r *actionRun) cancelTask(taskID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.taskCancels[taskID]
	if ok {
		cancel()
	}
	return ok
}

// Run starts or resumes execution of action (§4.4). Idempotent: if the
// action already has a run in progress, it returns ErrAlreadyRunning
// without starting a second one — a no-op signal, not a failure.
func (e *Executor) Run(ctx context.Context, actionID uuid.UUID) error {
	e.mu.Lock()
	if _, active := e.runs[actionID]; active {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &actionRun{
		actionID:    actionID,
		cancel:      cancel,
		sem:         semaphore.NewWeighted(int64(e.cfg.MaxInflight)),
		wake:        make(chan struct{}, 1),
		taskCancels: make(map[uuid.UUID]context.CancelFunc),
	}
	e.runs[actionID] = run
	e.mu.Unlock()
	telemetry.ActionsInFlight.Inc()

	if err := e.cfg.Store.UpdateActionStatus(ctx, actionID, domain.ActionStatusRunning); err != nil {
		e.endRun(actionID)
		cancel()
		return fmt.Errorf("mark action running: %w", err)
	}
	e.cfg.Bus.Publish(actionID, bus.KindActionStarted, map[string]any{"action_id": actionID})

	go e.schedulingLoop(runCtx, run)
	return nil
}

// Wake asks the scheduling loop for actionID to recompute the ready set
// immediately, without waiting for a task to finish. Called by the
// mutation engine after Add/Edit/Delete/Reset so newly-ready tasks are
// picked up promptly. No-op if no run is active.
func (e *Executor) Wake(actionID uuid.UUID) {
	e.mu.Lock()
	run, active := e.runs[actionID]
	e.mu.Unlock()
	if active {
		run.notify()
	}
}

// CancelTask signals cooperative cancellation for one in-flight task
// within an active run. No-op if the action has no active run or the
// task isn't currently in-flight.
func (e *Executor) CancelTask(actionID, taskID uuid.UUID) {
	e.mu.Lock()
	run, active := e.runs[actionID]
	e.mu.Unlock()
	if active {
		run.cancelTask(taskID)
	}
}

// Abort cancels every in-flight task and ends the run for actionID.
func (e *Executor) Abort(actionID uuid.UUID) {
	e.mu.Lock()
	run, active := e.runs[actionID]
	e.mu.Unlock()
	if active {
		run.cancel()
	}
}

// IsRunning reports whether actionID currently has an active scheduling
// loop.
func (e *Executor) IsRunning(actionID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, active := e.runs[actionID]
	return active
}

// Retry re-opens a terminal action for another run (§4.4's optional
// action-level retry, made a first-class operation per §12): resets
// every failed task back to pending, bumps the action's retry counter
// and starts the scheduling loop again. It does not touch pending or
// already-completed tasks — only a failed action has anything to retry.
func (e *Executor) Retry(ctx context.Context, actionID uuid.UUID) error {
	if e.IsRunning(actionID) {
		return ErrAlreadyRunning
	}

	tasks, err := e.cfg.Store.ListTasks(ctx, actionID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	failed := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.TaskStatusFailed {
			failed = append(failed, t.ID)
		}
	}
	if len(failed) == 0 {
		return ErrNothingToRetry
	}
	if err := e.cfg.Store.ResetTasks(ctx, failed); err != nil {
		return fmt.Errorf("reset failed tasks: %w", err)
	}

	action, err := e.cfg.Store.GetAction(ctx, actionID)
	if err != nil {
		return fmt.Errorf("get action: %w", err)
	}
	action.MarkRetrying()
	if err := e.cfg.Store.UpdateActionStatus(ctx, actionID, action.Status); err != nil {
		return fmt.Errorf("mark action retrying: %w", err)
	}
	e.cfg.Bus.Publish(actionID, bus.KindActionRetry, map[string]any{
		"action_id": actionID,
		"attempt":   action.Attempt,
	})

	return e.Run(ctx, actionID)
}

func (e *Executor) endRun(actionID uuid.UUID) {
	e.mu.Lock()
	_, active := e.runs[actionID]
	delete(e.runs, actionID)
	e.mu.Unlock()
	if active {
		telemetry.ActionsInFlight.Dec()
	}
}

// schedulingLoop is the ready-set loop described in §4.4: recompute ready
// tasks, admit as many as the concurrency bound allows, and block until
// something changes (a task finished, a mutation woke us, or the action
// was aborted).
func (e *Executor) schedulingLoop(ctx context.Context, run *actionRun) {
	defer run.wg.Wait()
	defer e.endRun(run.actionID)

	logger := telemetry.WithActionID(e.cfg.Logger, run.actionID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	ctx, span := telemetry.Tracer().Start(ctx, "executor.run")
	span.SetAttributes(attribute.String("action_id", run.actionID.String()))
	defer span.End()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks, err := e.cfg.Store.ListTasks(ctx, run.actionID)
		if err != nil {
			logger.Error("list tasks failed", "error", err)
			return
		}

		dag, err := graph.Build(toGraphInputs(tasks))
		if err != nil {
			logger.Error("build graph failed", "error", err)
			return
		}

		completed := make(map[uuid.UUID]bool)
		running := make(map[uuid.UUID]bool)
		failed := make(map[uuid.UUID]bool)
		var anyFailed, anyRunning bool
		for _, t := range tasks {
			switch t.Status {
			case domain.TaskStatusCompleted:
				completed[t.ID] = true
			case domain.TaskStatusRunning:
				running[t.ID] = true
				anyRunning = true
			case domain.TaskStatusFailed:
				failed[t.ID] = true
				anyFailed = true
			}
		}

		// Failed tasks are not pending, so they are left out of the ready set.
		ready := make([]*graph.Node, 0)
		for _, node := range dag.ReadyNodes(completed, running) {
			if !failed[node.ID] {
				ready = append(ready, node)
			}
		}

		if !anyRunning && len(ready) == 0 {
			e.finalizeAction(ctx, run.actionID, anyFailed, logger)
			return
		}

		for _, node := range ready {
			if !run.sem.TryAcquire(1) {
				break
			}
			run.wg.Add(1)
			go e.runTask(ctx, run, node.ID)
		}

		select {
		case <-ctx.Done():
			return
		case <-run.wake:
		}
	}
}

// finalizeAction sets the action's terminal status per the §3 invariant:
// failed if any task failed, completed otherwise.
func (e *Executor) finalizeAction(ctx context.Context, actionID uuid.UUID, anyFailed bool, logger *slog.Logger) {
	status := domain.ActionStatusCompleted
	kind := bus.KindActionDone
	if anyFailed {
		status = domain.ActionStatusFailed
		kind = bus.KindActionFailed
	}
	if err := e.cfg.Store.UpdateActionStatus(ctx, actionID, status); err != nil {
		logger.Error("update action status failed", "error", err)
	}
	e.cfg.Bus.Publish(actionID, kind, map[string]any{"action_id": actionID})
}

// runTask executes the per-task lifecycle of §4.4: claim, gather inputs,
// invoke, retry-with-backoff on transient failure, persist terminal state.
func (e *Executor) runTask(ctx context.Context, run *actionRun, taskID uuid.UUID) {
	defer run.sem.Release(1)
	defer run.wg.Done()
	defer run.notify()

	logger := telemetry.WithTaskID(telemetry.FromContext(ctx), taskID.String())

	taskCtx, cancel := context.WithCancel(ctx)
	run.registerCancel(taskID, cancel)
	defer run.unregisterCancel(taskID)
	defer cancel()

	taskCtx, span := telemetry.Tracer().Start(taskCtx, "executor.runTask")
	span.SetAttributes(attribute.String("action_id", run.actionID.String()), attribute.String("task_id", taskID.String()))
	defer span.End()

	token, ok, err := e.cfg.Store.ClaimTask(taskCtx, taskID)
	if err != nil {
		logger.Error("claim task failed", "task_id", taskID, "error", err)
		return
	}
	if !ok {
		// Lost the race to another admission pass, or invalidated between
		// ready-set computation and claim. Not an error.
		return
	}

	e.cfg.Bus.Publish(run.actionID, bus.KindTaskStarted, map[string]any{"task_id": taskID})
	telemetry.TasksStartedTotal.Inc()
	claimedAt := time.Now()

	task, err := e.cfg.Store.GetTask(taskCtx, taskID)
	if err != nil {
		logger.Error("get claimed task failed", "task_id", taskID, "error", err)
		return
	}

	inputs, err := e.gatherDependencyInputs(taskCtx, task)
	if err != nil {
		logger.Error("gather dependency inputs failed", "task_id", taskID, "error", err)
		_ = e.cfg.Store.FailTask(taskCtx, taskID, token, err.Error())
		e.cfg.Bus.Publish(run.actionID, bus.KindTaskFailed, map[string]any{"task_id": taskID, "error": err.Error()})
		return
	}

	a := e.cfg.Registry.Get(task.AgentType)

	attempt := 1
	for {
		result, runErr := e.invoke(taskCtx, a, task, inputs)
		if runErr == nil {
			e.commitSuccess(taskCtx, run, task, token, result, logger)
			telemetry.TaskDurationSeconds.Observe(time.Since(claimedAt).Seconds())
			return
		}

		if taskCtx.Err() != nil {
			// Cancelled (invalidation or abort) mid-invocation; the
			// mutation engine owns resetting this task's status.
			return
		}

		transient := !agent.IsPermanent(runErr)
		task.Attempt = attempt
		if transient && task.CanRetry(e.cfg.MaxAttempts) {
			e.cfg.Bus.Publish(run.actionID, bus.KindTaskRetrying, map[string]any{
				"task_id": taskID, "attempt": attempt, "error": runErr.Error(),
			})
			telemetry.TaskRetriesTotal.Inc()
			delay := fullJitterBackoff(attempt, e.cfg.BackoffBase, e.cfg.BackoffMax)
			select {
			case <-time.After(delay):
			case <-taskCtx.Done():
				return
			}
			attempt++
			continue
		}

		span.RecordError(runErr)
		e.commitFailure(taskCtx, run, taskID, token, runErr, logger)
		telemetry.TaskDurationSeconds.Observe(time.Since(claimedAt).Seconds())
		return
	}
}

func (e *Executor) invoke(ctx context.Context, a agent.Agent, task *domain.Task, inputs []agent.Dependency) (agent.Result, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	in := agent.Input{
		TaskID:       task.ID,
		Prompt:       task.Prompt,
		Model:        task.Model,
		Dependencies: inputs,
	}

	logSink := func(line agent.LogLine) {
		_ = e.cfg.Store.AppendLog(ctx, domain.LogEntry{
			ID:      uuid.New(),
			TaskID:  task.ID,
			Level:   domain.LogLevel(line.Level),
			Message: line.Message,
			Payload: line.Payload,
		})
		e.cfg.Bus.Publish(task.ActionID, bus.KindLogAppend, map[string]any{
			"task_id": task.ID, "message": line.Message,
		})
	}

	result, err := a.Run(invokeCtx, in, logSink)
	if err != nil && errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
		return agent.Result{}, agent.Transient(fmt.Errorf("task timed out after %s: %w", e.cfg.TaskTimeout, err))
	}
	return result, err
}

func (e *Executor) commitSuccess(ctx context.Context, run *actionRun, task *domain.Task, token uuid.UUID, result agent.Result, logger *slog.Logger) bool {
	artifactIDs := make([]uuid.UUID, 0, len(result.Artifacts))
	for _, blob := range result.Artifacts {
		id := uuid.New()
		if e.cfg.Blobs != nil {
			if err := e.cfg.Blobs.Put(id, blob.Data); err != nil {
				logger.Error("persist artifact blob failed", "task_id", task.ID, "error", err)
				continue
			}
			meta := domain.Artifact{
				ID: id, TaskID: task.ID, MimeType: blob.MimeType,
				StoragePath: id.String(), SizeBytes: int64(len(blob.Data)),
			}
			if err := e.cfg.Store.SaveArtifactMeta(ctx, meta); err != nil {
				logger.Error("save artifact metadata failed", "task_id", task.ID, "error", err)
				continue
			}
		}
		artifactIDs = append(artifactIDs, id)
	}

	output := domain.TaskOutput{
		TaskID:      task.ID,
		Summary:     result.Summary,
		ArtifactIDs: artifactIDs,
		CreatedAt:   time.Now(),
	}

	err := e.cfg.Store.CompleteTask(ctx, task.ID, token, output)
	if errors.Is(err, store.ErrStaleClaimToken) {
		e.cfg.Bus.Publish(run.actionID, bus.KindTaskRecovered, map[string]any{"task_id": task.ID})
		return true
	}
	if err != nil {
		logger.Error("complete task failed", "task_id", task.ID, "error", err)
		return true
	}

	e.cfg.Bus.Publish(run.actionID, bus.KindTaskDone, map[string]any{"task_id": task.ID, "summary": result.Summary})
	telemetry.TasksCompletedTotal.WithLabelValues("completed").Inc()
	return true
}

func (e *Executor) commitFailure(ctx context.Context, run *actionRun, taskID, token uuid.UUID, runErr error, logger *slog.Logger) {
	err := e.cfg.Store.FailTask(ctx, taskID, token, runErr.Error())
	if errors.Is(err, store.ErrStaleClaimToken) {
		e.cfg.Bus.Publish(run.actionID, bus.KindTaskRecovered, map[string]any{"task_id": taskID})
		return
	}
	if err != nil {
		logger.Error("fail task persist failed", "task_id", taskID, "error", err)
		return
	}
	e.cfg.Bus.Publish(run.actionID, bus.KindTaskFailed, map[string]any{"task_id": taskID, "error": runErr.Error()})
	telemetry.TasksCompletedTotal.WithLabelValues("failed").Inc()
}

// gatherDependencyInputs collects the completed outputs of task's
// dependencies (§4.4 step 2).
func (e *Executor) gatherDependencyInputs(ctx context.Context, task *domain.Task) ([]agent.Dependency, error) {
	deps := make([]agent.Dependency, 0, len(task.Dependencies))
	for _, depID := range task.Dependencies {
		out, err := e.cfg.Store.GetTaskOutput(ctx, depID)
		if err != nil {
			return nil, fmt.Errorf("load output of dependency %s: %w", depID, err)
		}
		deps = append(deps, agent.Dependency{
			TaskID:      depID,
			Summary:     out.Summary,
			ArtifactIDs: out.ArtifactIDs,
		})
	}
	return deps, nil
}

func toGraphInputs(tasks []*domain.Task) []graph.Input {
	inputs := make([]graph.Input, len(tasks))
	for i, t := range tasks {
		inputs[i] = graph.Input{ID: t.ID, Dependencies: t.Dependencies}
	}
	return inputs
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/graph"
)

// Memory is an in-process Store implementation: a map-backed stand-in for
// the Postgres-backed Store, used in tests and by the injectable-store
// design note (§9).
type Memory struct {
	mu sync.RWMutex

	actions map[uuid.UUID]*domain.Action
	tasks   map[uuid.UUID]*domain.Task
	outputs map[uuid.UUID]*domain.TaskOutput
	logs    map[uuid.UUID][]domain.LogEntry
	arts    map[uuid.UUID]*domain.Artifact
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		actions: make(map[uuid.UUID]*domain.Action),
		tasks:   make(map[uuid.UUID]*domain.Task),
		outputs: make(map[uuid.UUID]*domain.TaskOutput),
		logs:    make(map[uuid.UUID][]domain.LogEntry),
		arts:    make(map[uuid.UUID]*domain.Artifact),
	}
}

func (m *Memory) CreateAction(_ context.Context, title, rootPrompt string) (*domain.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	a := &domain.Action{
		ID:         uuid.New(),
		Title:      title,
		RootPrompt: rootPrompt,
		Status:     domain.ActionStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.actions[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *Memory) GetAction(_ context.Context, id uuid.UUID) (*domain.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) ListActions(_ context.Context, filter ActionFilter) ([]*domain.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Action, 0, len(m.actions))
	for _, a := range m.actions {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) UpdateActionStatus(_ context.Context, id uuid.UUID, status domain.ActionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.actions[id]
	if !ok {
		return ErrNotFound
	}
	if !a.Status.CanTransitionTo(status) {
		return domain.ErrInvalidStatusTransition
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	switch status {
	case domain.ActionStatusCompleted, domain.ActionStatusFailed:
		now := time.Now()
		a.FinishedAt = &now
	}
	return nil
}

func (m *Memory) DeleteAction(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.actions[id]; !ok {
		return ErrNotFound
	}
	delete(m.actions, id)
	var owned []uuid.UUID
	for tid, t := range m.tasks {
		if t.ActionID == id {
			delete(m.tasks, tid)
			delete(m.outputs, tid)
			delete(m.logs, tid)
			owned = append(owned, tid)
		}
	}
	for artID, a := range m.arts {
		for _, tid := range owned {
			if a.TaskID == tid {
				delete(m.arts, artID)
				break
			}
		}
	}
	return nil
}

// buildGraphInputs snapshots actionID's tasks (excluding excludeIDs) as
// graph.Input, for validating a prospective mutation before committing it.
func (m *Memory) buildGraphInputs(actionID uuid.UUID, excludeIDs map[uuid.UUID]bool) []graph.Input {
	inputs := make([]graph.Input, 0)
	for _, t := range m.tasks {
		if t.ActionID != actionID || excludeIDs[t.ID] {
			continue
		}
		inputs = append(inputs, graph.Input{ID: t.ID, Dependencies: t.Dependencies})
	}
	return inputs
}

func (m *Memory) CreateTasks(_ context.Context, actionID uuid.UUID, specs []domain.TaskSpec) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.actions[actionID]; !ok {
		return nil, ErrNotFound
	}

	for _, spec := range specs {
		if spec.Prompt == "" {
			return nil, domain.ErrEmptyPrompt
		}
	}

	now := time.Now()
	newTasks := make([]*domain.Task, 0, len(specs))
	for _, spec := range specs {
		newTasks = append(newTasks, &domain.Task{
			ID:           uuid.New(),
			ActionID:     actionID,
			Prompt:       spec.Prompt,
			AgentType:    spec.AgentType,
			Model:        spec.Model,
			Status:       domain.TaskStatusPending,
			Dependencies: spec.Dependencies,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	inputs := m.buildGraphInputs(actionID, nil)
	for _, t := range newTasks {
		inputs = append(inputs, graph.Input{ID: t.ID, Dependencies: t.Dependencies})
	}
	if _, err := graph.Build(inputs); err != nil {
		return nil, err
	}

	for _, t := range newTasks {
		m.tasks[t.ID] = t
	}

	out := make([]*domain.Task, len(newTasks))
	for i, t := range newTasks {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (m *Memory) GetTask(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) ListTasks(_ context.Context, actionID uuid.UUID) ([]*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Task, 0)
	for _, t := range m.tasks {
		if t.ActionID == actionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) UpdateTask(_ context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	trial := *t
	if patch.Prompt != nil {
		if *patch.Prompt == "" {
			return nil, domain.ErrEmptyPrompt
		}
		trial.Prompt = *patch.Prompt
	}
	if patch.AgentType != nil {
		trial.AgentType = *patch.AgentType
	}
	if patch.Model != nil {
		trial.Model = *patch.Model
	}
	if patch.Dependencies != nil {
		trial.Dependencies = *patch.Dependencies
	}

	inputs := m.buildGraphInputs(t.ActionID, map[uuid.UUID]bool{id: true})
	inputs = append(inputs, graph.Input{ID: trial.ID, Dependencies: trial.Dependencies})
	if _, err := graph.Build(inputs); err != nil {
		return nil, err
	}

	trial.UpdatedAt = time.Now()
	m.tasks[id] = &trial
	cp := trial
	return &cp, nil
}

func (m *Memory) ClaimTask(_ context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return uuid.Nil, false, ErrNotFound
	}
	if !t.Status.CanTransitionTo(domain.TaskStatusRunning) {
		return uuid.Nil, false, nil
	}
	token := t.MarkRunning()
	return token, true, nil
}

func (m *Memory) CompleteTask(_ context.Context, id uuid.UUID, token uuid.UUID, output domain.TaskOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !t.Status.CanTransitionTo(domain.TaskStatusCompleted) || t.ClaimToken != token {
		return ErrStaleClaimToken
	}
	t.MarkCompleted(output.Summary)
	output.TaskID = id
	output.CreatedAt = time.Now()
	m.outputs[id] = &output
	return nil
}

func (m *Memory) FailTask(_ context.Context, id uuid.UUID, token uuid.UUID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !t.Status.CanTransitionTo(domain.TaskStatusFailed) || t.ClaimToken != token {
		return ErrStaleClaimToken
	}
	t.MarkFailed(errMsg)
	return nil
}

func (m *Memory) ResetTasks(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		t.ResetToPending()
		delete(m.outputs, id)
	}
	for artID, a := range m.arts {
		for _, id := range ids {
			if a.TaskID == id {
				delete(m.arts, artID)
				break
			}
		}
	}
	return nil
}

func (m *Memory) GetTaskOutput(_ context.Context, id uuid.UUID) (*domain.TaskOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out, ok := m.outputs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *out
	return &cp, nil
}

func (m *Memory) DeleteTask(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	for _, other := range m.tasks {
		if other.ID != id && other.DependsOn(id) {
			return domain.ErrTaskHasDependents
		}
	}
	delete(m.tasks, id)
	delete(m.outputs, id)
	delete(m.logs, id)
	for artID, a := range m.arts {
		if a.TaskID == id {
			delete(m.arts, artID)
		}
	}
	_ = t
	return nil
}

func (m *Memory) Dependents(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	inputs := m.buildGraphInputs(t.ActionID, nil)
	g, err := graph.Build(inputs)
	if err != nil {
		return nil, err
	}
	return g.Dependents(id), nil
}

func (m *Memory) Ancestors(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	inputs := m.buildGraphInputs(t.ActionID, nil)
	g, err := graph.Build(inputs)
	if err != nil {
		return nil, err
	}
	return g.Ancestors(id), nil
}

func (m *Memory) AppendLog(_ context.Context, entry domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	m.logs[entry.TaskID] = append(m.logs[entry.TaskID], entry)
	return nil
}

func (m *Memory) ListLogs(_ context.Context, taskID uuid.UUID, limit int) ([]domain.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[taskID]
	if limit <= 0 || limit >= len(entries) {
		out := make([]domain.LogEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
	out := make([]domain.LogEntry, limit)
	copy(out, entries[len(entries)-limit:])
	return out, nil
}

func (m *Memory) TrimLogs(_ context.Context, taskID uuid.UUID, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.logs[taskID]
	if keep <= 0 || len(entries) <= keep {
		return nil
	}
	m.logs[taskID] = append([]domain.LogEntry(nil), entries[len(entries)-keep:]...)
	return nil
}

func (m *Memory) SaveArtifactMeta(_ context.Context, a domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	m.arts[a.ID] = &a
	return nil
}

func (m *Memory) GetArtifactMeta(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.arts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) DeleteArtifactsByTask(_ context.Context, taskIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make(map[uuid.UUID]bool, len(taskIDs))
	for _, id := range taskIDs {
		owned[id] = true
	}
	for id, a := range m.arts {
		if owned[a.TaskID] {
			delete(m.arts, id)
		}
	}
	return nil
}

func (m *Memory) Close(_ context.Context) error { return nil }

// Package manager implements the scheduler-supervisor that owns a parent
// task end-to-end: decomposition, assignment, progress tracking, failure
// analysis, dynamic pool adjustment, and quality-gate decisions.
package manager

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kawanishi0117/agent-company-sub000/internal/adapter"
	"github.com/kawanishi0117/agent-company-sub000/internal/bus"
	"github.com/kawanishi0117/agent-company-sub000/internal/decompose"
	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
	"github.com/kawanishi0117/agent-company-sub000/internal/graph"
	"github.com/kawanishi0117/agent-company-sub000/internal/runlog"
	"github.com/kawanishi0117/agent-company-sub000/pkg/models"
)

// Config carries the manager's identity and pool limits.
type Config struct {
	// ID is the manager's bus address. Defaults to a fresh worker-style id.
	ID string
	// Project is the target project descriptor.
	Project models.Project
	// Root is the runtime root for per-run logs.
	Root string
	// Scaling holds pool limits and scaling thresholds.
	Scaling ScalingConfig
}

// Manager is the scheduler-supervisor. All shared maps are guarded by mu;
// read-only accessors return snapshots.
type Manager struct {
	id         string
	project    models.Project
	root       string
	bus        *bus.Bus
	decomposer *decompose.Decomposer
	ad         adapter.Adapter

	mu          sync.RWMutex
	parent      *models.ParentTask
	subTasks    map[string]*models.SubTask
	graph       *graph.DependencyGraph
	workers     map[string]*models.WorkerInfo
	hireOrder   map[string]int
	hireSeq     int
	assignments map[string]string // worker id -> sub-task id
	runIDs      map[string]string // sub-task id -> current run id
	failures    []*models.FailureRecord
	escalations []*models.Escalation

	scaling   ScalingConfig
	lastScale time.Time

	monitorCancel context.CancelFunc
	scaleCancel   context.CancelFunc
	loops         sync.WaitGroup
}

// New creates a manager wired to the bus, decomposer, and model backend.
func New(cfg Config, b *bus.Bus, d *decompose.Decomposer, ad adapter.Adapter) *Manager {
	if cfg.ID == "" {
		cfg.ID = models.NewManagerID()
	}
	return &Manager{
		id:          cfg.ID,
		project:     cfg.Project,
		root:        cfg.Root,
		bus:         b,
		decomposer:  d,
		ad:          ad,
		subTasks:    make(map[string]*models.SubTask),
		workers:     make(map[string]*models.WorkerInfo),
		hireOrder:   make(map[string]int),
		assignments: make(map[string]string),
		runIDs:      make(map[string]string),
		scaling:     cfg.Scaling.withDefaults(),
	}
}

// ID returns the manager's bus address.
func (m *Manager) ID() string { return m.id }

// ReceiveTask accepts an operator instruction and moves the parent task to
// decomposing.
func (m *Manager) ReceiveTask(task *models.ParentTask) error {
	if task == nil || strings.TrimSpace(task.ID) == "" {
		return errkind.Errorf(errkind.InvalidInput, "task id is empty")
	}
	if strings.TrimSpace(task.Instruction) == "" {
		return errkind.Errorf(errkind.InvalidInput, "task %s has no instruction", task.ID)
	}
	if !task.Status.CanTransition(models.ParentStatusDecomposing) {
		return errkind.Errorf(errkind.InvalidInput, "task %s cannot move from %s to decomposing", task.ID, task.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task.Status = models.ParentStatusDecomposing
	task.AssignedManager = m.id
	task.UpdatedAt = time.Now().UTC()
	m.parent = task
	return nil
}

// DecomposeTask delegates to the decomposer, stores the resulting
// sub-tasks, and moves the parent to executing. A cyclic plan is refused
// as a schedule: the parent terminates with failure.
func (m *Manager) DecomposeTask(ctx context.Context, task *models.ParentTask) error {
	pctx := decompose.Context{
		ProjectID: task.ProjectID,
	}
	if pctx.ProjectID == "" {
		pctx.ProjectID = m.project.ID
	}

	result, err := m.decomposer.Decompose(ctx, task.Instruction, pctx, decompose.Options{})
	if err != nil {
		m.failParent(task)
		return errkind.Wrap(errkind.DecompositionError, err)
	}

	m.mu.Lock()
	for _, st := range result.SubTasks {
		m.subTasks[st.ID] = st
	}
	m.graph = result.Graph
	m.mu.Unlock()

	if result.Graph.HasCycle() {
		m.failParent(task)
		return errkind.Errorf(errkind.DecompositionError, "plan for %s has a dependency cycle", task.ID)
	}

	m.mu.Lock()
	task.Status = models.ParentStatusExecuting
	task.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	return nil
}

// failParent marks the parent task failed if the transition is legal.
func (m *Manager) failParent(task *models.ParentTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.Status.CanTransition(models.ParentStatusFailed) {
		task.Status = models.ParentStatusFailed
		task.UpdatedAt = time.Now().UTC()
	}
}

// AssignTask hands a sub-task to a worker: the sub-task becomes assigned,
// the worker becomes working, and a task_assign message with a fresh run
// id goes out on the bus. Unknown workers are registered on the fly.
func (m *Manager) AssignTask(ctx context.Context, subTaskID, workerID string) error {
	if strings.TrimSpace(workerID) == "" {
		return errkind.Errorf(errkind.InvalidInput, "worker id is empty")
	}

	m.mu.Lock()
	if m.parent == nil {
		m.mu.Unlock()
		return errkind.Errorf(errkind.AssignmentError, "no parent task received")
	}
	st, ok := m.subTasks[subTaskID]
	if !ok {
		m.mu.Unlock()
		return errkind.Errorf(errkind.AssignmentError, "unknown sub-task %s", subTaskID)
	}
	if !st.Status.CanTransition(models.SubTaskStatusAssigned) {
		m.mu.Unlock()
		return errkind.Errorf(errkind.AssignmentError, "sub-task %s is %s, not assignable", subTaskID, st.Status)
	}
	if current, busy := m.assignments[workerID]; busy {
		m.mu.Unlock()
		return errkind.Errorf(errkind.AssignmentError, "worker %s already holds %s", workerID, current)
	}

	w, known := m.workers[workerID]
	if !known {
		w = &models.WorkerInfo{
			ID:           workerID,
			Name:         workerID,
			Capabilities: []string{"general"},
			Status:       models.WorkerStatusIdle,
			HiredAt:      time.Now().UTC(),
			HealthScore:  100,
		}
		m.workers[workerID] = w
		m.hireSeq++
		m.hireOrder[workerID] = m.hireSeq
	}

	now := time.Now().UTC()
	st.Status = models.SubTaskStatusAssigned
	st.Assignee = workerID
	st.UpdatedAt = now
	w.Status = models.WorkerStatusWorking
	w.LastActivity = now
	m.assignments[workerID] = subTaskID

	runID := models.NewRunID()
	m.runIDs[subTaskID] = runID
	payload := bus.TaskAssignPayload{
		RunID:   runID,
		Project: m.project,
		SubTask: *st.Clone(),
	}
	m.mu.Unlock()

	msg, err := bus.New(bus.TypeTaskAssign, m.id, workerID, runID, payload)
	if err != nil {
		return errkind.Wrap(errkind.CommunicationError, err)
	}
	if err := m.bus.Publish(msg); err != nil {
		return err
	}
	return nil
}

// AssignPair names one sub-task / worker pairing.
type AssignPair struct {
	SubTaskID string
	WorkerID  string
}

// AssignTasksInParallel performs every assignment concurrently and waits
// for all of them; the first error cancels the rest.
func (m *Manager) AssignTasksInParallel(ctx context.Context, pairs []AssignPair) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			return m.AssignTask(ctx, p.SubTaskID, p.WorkerID)
		})
	}
	return g.Wait()
}

// ProcessMessage dispatches one received bus message by type.
func (m *Manager) ProcessMessage(ctx context.Context, msg *bus.Message) error {
	if msg == nil {
		return nil
	}
	switch msg.Type {
	case bus.TypeTaskComplete:
		var p bus.TaskResultPayload
		if err := msg.DecodePayload(&p); err != nil {
			return errkind.Wrap(errkind.CommunicationError, err)
		}
		return m.handleTaskComplete(&p)
	case bus.TypeTaskFailed:
		var p bus.TaskResultPayload
		if err := msg.DecodePayload(&p); err != nil {
			return errkind.Wrap(errkind.CommunicationError, err)
		}
		return m.handleTaskFailed(ctx, msg.RunID, &p)
	case bus.TypeQualityGateFailed:
		var p bus.QualityGatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return errkind.Wrap(errkind.CommunicationError, err)
		}
		_, err := m.HandleQualityGateFailure(ctx, &p)
		return err
	case bus.TypeEscalate:
		var p bus.EscalatePayload
		if err := msg.DecodePayload(&p); err != nil {
			return errkind.Wrap(errkind.CommunicationError, err)
		}
		return m.HandleEscalation(ctx, &p.Escalation)
	case bus.TypeStatusResponse:
		var p bus.StatusResponsePayload
		if err := msg.DecodePayload(&p); err != nil {
			return errkind.Wrap(errkind.CommunicationError, err)
		}
		m.touchWorker(p.WorkerID)
		return nil
	default:
		return nil
	}
}

// touchWorker refreshes a worker's last-activity timestamp.
func (m *Manager) touchWorker(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workers[workerID]; ok {
		w.LastActivity = time.Now().UTC()
	}
}

// SubTask returns a snapshot of one sub-task.
func (m *Manager) SubTask(id string) (*models.SubTask, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.subTasks[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// FinishReview moves the parent from reviewing to completed once the
// integration merge has landed.
func (m *Manager) FinishReview() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parent == nil {
		return errkind.Errorf(errkind.InvalidInput, "no parent task received")
	}
	if !m.parent.Status.CanTransition(models.ParentStatusCompleted) {
		return errkind.Errorf(errkind.InvalidInput, "parent task is %s, cannot complete", m.parent.Status)
	}
	m.parent.Status = models.ParentStatusCompleted
	m.parent.UpdatedAt = time.Now().UTC()
	return nil
}

// SubTasks returns snapshots of every sub-task, in id order.
func (m *Manager) SubTasks() []*models.SubTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.SubTask, 0, len(m.subTasks))
	for _, st := range m.subTasks {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Parent returns the current parent task.
func (m *Manager) Parent() *models.ParentTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.parent == nil {
		return nil
	}
	p := *m.parent
	return &p
}

// Graph returns the current dependency graph, or nil before decomposition.
func (m *Manager) Graph() *graph.DependencyGraph {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph
}

// ReadySubTasks returns the pending sub-tasks whose dependencies are all
// completed, in id order.
func (m *Manager) ReadySubTasks() []*models.SubTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.graph == nil {
		return nil
	}
	var out []*models.SubTask
	for _, id := range m.graph.Ready() {
		if st, ok := m.subTasks[id]; ok && st.Status == models.SubTaskStatusPending {
			out = append(out, st.Clone())
		}
	}
	return out
}

// ResolveRun maps an issued run id back to the sub-task it was created
// for and that sub-task's assignee. Satisfies the watcher's resolver
// contract.
func (m *Manager) ResolveRun(runID string) (workerID, subTaskID string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for stID, r := range m.runIDs {
		if r != runID {
			continue
		}
		if st, found := m.subTasks[stID]; found {
			workerID = st.Assignee
		}
		return workerID, stID, true
	}
	return "", "", false
}

// errorLogFor returns the errors.log writer for a run id.
func (m *Manager) errorLogFor(runID string) *runlog.ErrorLog {
	if m.root == "" || runID == "" {
		return nil
	}
	return runlog.NewErrorLog(m.root, runID)
}

package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

const defaultMaxRetries = 2

// Tracker owns the primary task map and the indices that must stay
// consistent with it on every mutation.
type Tracker struct {
	mu sync.RWMutex

	byID       map[string]*TrackedTask
	byAgent    map[string]map[string]struct{} // agentInstanceId -> set of taskId
	byPlan     map[string]map[string]struct{} // workflowPlanId -> set of taskId
	byStep     map[string]string              // workflowStepId -> taskId
	nextSeq    uint64
	now        func() time.Time
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		byID:    make(map[string]*TrackedTask),
		byAgent: make(map[string]map[string]struct{}),
		byPlan:  make(map[string]map[string]struct{}),
		byStep:  make(map[string]string),
		now:     time.Now,
	}
}

func (t *Tracker) newTaskID() string {
	t.nextSeq++
	return fmt.Sprintf("task-%d-%d", t.now().UnixNano(), t.nextSeq)
}

// CreateTask registers a new task in pending state and wires workflow
// indices if the corresponding ids are supplied.
func (t *Tracker) CreateTask(opts CreateOpts) (*TrackedTask, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	priority := opts.Priority
	if priority == 0 {
		priority = 50
	}
	maxRetries := defaultMaxRetries
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	task := &TrackedTask{
		TaskID:         t.newTaskID(),
		CorrelationID:  opts.CorrelationID,
		Task:           opts.Task,
		Status:         StatusPending,
		RequestedBy:    opts.RequestedBy,
		WorkflowStepID: opts.WorkflowStepID,
		WorkflowPlanID: opts.WorkflowPlanID,
		Priority:       priority,
		Tags:           opts.Tags,
		CreatedAt:      t.now(),
		Deadline:       opts.Deadline,
		MaxRetries:     maxRetries,
	}
	t.byID[task.TaskID] = task

	if opts.WorkflowPlanID != "" {
		if t.byPlan[opts.WorkflowPlanID] == nil {
			t.byPlan[opts.WorkflowPlanID] = make(map[string]struct{})
		}
		t.byPlan[opts.WorkflowPlanID][task.TaskID] = struct{}{}
	}
	if opts.WorkflowStepID != "" {
		t.byStep[opts.WorkflowStepID] = task.TaskID
	}

	clone := *task
	return &clone, nil
}

// AssignTask moves taskId from pending|failed into assigned, recording
// assignedAt and updating the agent index.
func (t *Tracker) AssignTask(taskID string, agentInstanceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok {
		return false
	}
	if task.Status != StatusPending && task.Status != StatusFailed {
		return false
	}

	t.removeFromAgentIndexLocked(task.TaskID, task.AssignedTo)

	task.Status = StatusAssigned
	task.AssignedTo = agentInstanceID
	now := t.now()
	task.AssignedAt = &now

	t.addToAgentIndexLocked(task.TaskID, agentInstanceID)
	return true
}

// StartTask moves an assigned task into in-progress.
func (t *Tracker) StartTask(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok || task.Status != StatusAssigned {
		return false
	}
	task.Status = StatusInProgress
	now := t.now()
	task.StartedAt = &now
	return true
}

// UpdateProgress may be called in any non-terminal state; it is idempotent.
func (t *Tracker) UpdateProgress(taskID string, percent *int, statusLine string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok || task.Status.IsTerminal() {
		return false
	}
	if percent != nil {
		if err := protocol.ValidatePercent(*percent); err != nil {
			return false
		}
		task.ProgressPercent = percent
	}
	if statusLine != "" {
		task.StatusLine = statusLine
	}
	return true
}

// CompleteTask records the terminal outcome reported by an agent, mapping
// result.status onto the task's final Status.
func (t *Tracker) CompleteTask(taskID string, result Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok || task.Status.IsTerminal() {
		return false
	}

	var final Status
	switch result.Status {
	case protocol.ResultSuccess, protocol.ResultPartial:
		final = StatusCompleted
	case protocol.ResultTimeout:
		final = StatusTimeout
	default:
		final = StatusFailed
	}

	task.Status = final
	now := t.now()
	task.CompletedAt = &now
	full := 100
	task.ProgressPercent = &full
	task.Result = &result
	return true
}

// CancelTask marks a pending, assigned or in-progress task cancelled
// (terminal); it rejects every other status, including failed and timeout.
func (t *Tracker) CancelTask(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok {
		return false
	}
	if !task.Status.canTransitionTo(StatusCancelled) {
		return false
	}
	task.Status = StatusCancelled
	now := t.now()
	task.CompletedAt = &now
	return true
}

// RetryTask requires status failed|timeout and retryCount < maxRetries;
// it clears transient fields and returns the task to pending.
func (t *Tracker) RetryTask(taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.byID[taskID]
	if !ok {
		return false
	}
	if task.Status != StatusFailed && task.Status != StatusTimeout {
		return false
	}
	if task.RetryCount >= task.MaxRetries {
		return false
	}

	t.removeFromAgentIndexLocked(task.TaskID, task.AssignedTo)

	task.RetryCount++
	task.Status = StatusPending
	task.AssignedTo = ""
	task.AssignedAt = nil
	task.StartedAt = nil
	task.CompletedAt = nil
	task.ProgressPercent = nil
	task.StatusLine = ""
	task.Result = nil
	return true
}

func (t *Tracker) addToAgentIndexLocked(taskID, agentInstanceID string) {
	if agentInstanceID == "" {
		return
	}
	if t.byAgent[agentInstanceID] == nil {
		t.byAgent[agentInstanceID] = make(map[string]struct{})
	}
	t.byAgent[agentInstanceID][taskID] = struct{}{}
}

func (t *Tracker) removeFromAgentIndexLocked(taskID, agentInstanceID string) {
	if agentInstanceID == "" {
		return
	}
	set := t.byAgent[agentInstanceID]
	if set == nil {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(t.byAgent, agentInstanceID)
	}
}

// GetTask returns a copy of the task for taskID, if present.
func (t *Tracker) GetTask(taskID string) (TrackedTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.byID[taskID]
	if !ok {
		return TrackedTask{}, false
	}
	return *task, true
}

// GetTaskByWorkflowStep resolves a task via the one-to-one workflowStepId
// index, used to correlate incoming task.result/task.progress messages.
func (t *Tracker) GetTaskByWorkflowStep(workflowStepID string) (TrackedTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	taskID, ok := t.byStep[workflowStepID]
	if !ok {
		return TrackedTask{}, false
	}
	task, ok := t.byID[taskID]
	if !ok {
		return TrackedTask{}, false
	}
	return *task, true
}

// Filter narrows ListTasks; a zero-value field matches everything.
type Filter struct {
	AgentInstanceID string
	WorkflowPlanID  string
	Status          Status
}

// ListTasks uses the agent or workflow index for O(match) access when
// those filters are present, then applies remaining predicates. Results
// are sorted by priority descending.
func (t *Tracker) ListTasks(filter Filter) []TrackedTask {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var candidates []*TrackedTask
	switch {
	case filter.AgentInstanceID != "":
		for taskID := range t.byAgent[filter.AgentInstanceID] {
			if task, ok := t.byID[taskID]; ok {
				candidates = append(candidates, task)
			}
		}
	case filter.WorkflowPlanID != "":
		for taskID := range t.byPlan[filter.WorkflowPlanID] {
			if task, ok := t.byID[taskID]; ok {
				candidates = append(candidates, task)
			}
		}
	default:
		for _, task := range t.byID {
			candidates = append(candidates, task)
		}
	}

	out := make([]TrackedTask, 0, len(candidates))
	for _, task := range candidates {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.AgentInstanceID != "" && task.AssignedTo != filter.AgentInstanceID {
			continue
		}
		if filter.WorkflowPlanID != "" && task.WorkflowPlanID != filter.WorkflowPlanID {
			continue
		}
		out = append(out, *task)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Cleanup removes tasks in terminal states whose completedAt (or
// createdAt if unset) is older than now-maxAge, purging their index
// entries too. Returns the number removed.
func (t *Tracker) Cleanup(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	removed := 0
	for taskID, task := range t.byID {
		if !task.Status.IsTerminal() {
			continue
		}
		ref := task.CreatedAt
		if task.CompletedAt != nil {
			ref = *task.CompletedAt
		}
		if ref.After(cutoff) {
			continue
		}

		delete(t.byID, taskID)
		t.removeFromAgentIndexLocked(taskID, task.AssignedTo)
		if task.WorkflowPlanID != "" {
			if set := t.byPlan[task.WorkflowPlanID]; set != nil {
				delete(set, taskID)
				if len(set) == 0 {
					delete(t.byPlan, task.WorkflowPlanID)
				}
			}
		}
		if task.WorkflowStepID != "" {
			delete(t.byStep, task.WorkflowStepID)
		}
		removed++
	}
	return removed
}

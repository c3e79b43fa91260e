// Package tasks implements the Work Tracker component of the multi-agent
// coordination core: task state machine, indices, summaries, workload
// stats, and cleanup.
package tasks

import (
	"fmt"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// Status is the lifecycle state of a TrackedTask.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
)

// validTransitions lists the status-to-status edges that canTransitionTo
// checks; CancelTask is its only user. AssignTask, StartTask, CompleteTask
// and RetryTask check their source status directly, and those checks are
// wider than this table: AssignTask also accepts failed, and CompleteTask
// accepts any non-terminal status.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled},
	StatusFailed:     {StatusPending},
	StatusTimeout:    {StatusPending},
}

// IsTerminal reports whether status has no outgoing transitions other than
// retry (failed/timeout, handled separately via RetryTask).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) canTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Result is the terminal outcome an agent reports for a task via
// task.result.
type Result struct {
	Status protocol.ResultStatus `json:"status"`
	Text   string                `json:"text,omitempty"`
}

// TrackedTask is a unit of work assigned to, and tracked across, agent
// instances.
type TrackedTask struct {
	TaskID         string   `json:"taskId"`
	CorrelationID  string   `json:"correlationId,omitempty"`
	Task           string   `json:"task"`
	Status         Status   `json:"status"`
	AssignedTo     string   `json:"assignedTo,omitempty"` // agentInstanceId
	RequestedBy    string   `json:"requestedBy,omitempty"`
	WorkflowStepID string   `json:"workflowStepId,omitempty"`
	WorkflowPlanID string   `json:"workflowPlanId,omitempty"`
	Priority       int      `json:"priority"`
	Tags           []string `json:"tags,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`

	ProgressPercent *int    `json:"progressPercent,omitempty"`
	StatusLine      string  `json:"statusLine,omitempty"`
	Result          *Result `json:"result,omitempty"`

	RetryCount int `json:"retryCount"`
	MaxRetries int `json:"maxRetries"`
}

// CreateOpts are the caller-supplied fields for CreateTask.
type CreateOpts struct {
	Task           string
	CorrelationID  string
	RequestedBy    string
	WorkflowStepID string
	WorkflowPlanID string
	Priority       int // 0 => defaults to 50
	MaxRetries     *int
	Deadline       *time.Time
	Tags           []string
}

func (o CreateOpts) validate() error {
	if o.Task == "" {
		return fmt.Errorf("task description is required")
	}
	if len(o.Task) > protocol.MaxTaskDescriptionChars {
		return fmt.Errorf("task description exceeds %d chars", protocol.MaxTaskDescriptionChars)
	}
	return nil
}

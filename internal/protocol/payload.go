package protocol

import "fmt"

// PayloadType is the literal discriminator carried on every payload.
type PayloadType string

const (
	PayloadTaskAssign        PayloadType = "task.assign"
	PayloadTaskResult        PayloadType = "task.result"
	PayloadTaskProgress      PayloadType = "task.progress"
	PayloadHeartbeat         PayloadType = "heartbeat"
	PayloadAgentDiscovery    PayloadType = "agent.discovery"
	PayloadRoleAssign        PayloadType = "role.assign"
	PayloadSecurityChallenge PayloadType = "security.challenge"
	PayloadSecurityResponse  PayloadType = "security.response"
)

// DiscoveryAction enumerates agent.discovery actions.
type DiscoveryAction string

const (
	DiscoveryJoin     DiscoveryAction = "join"
	DiscoveryLeave    DiscoveryAction = "leave"
	DiscoveryAnnounce DiscoveryAction = "announce"
)

// ResultStatus enumerates task.result outcomes.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultTimeout ResultStatus = "timeout"
	ResultFailure ResultStatus = "failure"
)

// TaskAssignPayload carries a task assignment from orchestrator to agent.
type TaskAssignPayload struct {
	TaskID         string `json:"taskId"`
	Task           string `json:"task"`
	WorkflowStepID string `json:"workflowStepId,omitempty"`
	WorkflowPlanID string `json:"workflowPlanId,omitempty"`
	Priority       int    `json:"priority,omitempty"`
	Deadline       *int64 `json:"deadline,omitempty"` // unix millis
}

// TaskResultPayload reports the terminal outcome of a task from an agent.
type TaskResultPayload struct {
	WorkflowStepID string       `json:"workflowStepId,omitempty"`
	Status         ResultStatus `json:"status"`
	Text           string       `json:"text,omitempty"`
}

// TaskProgressPayload reports in-flight progress for a task.
type TaskProgressPayload struct {
	WorkflowStepID string `json:"workflowStepId,omitempty"`
	Percent        *int   `json:"percent,omitempty"`
	StatusLine     string `json:"statusLine,omitempty"`
}

// HeartbeatPayload reports an agent's current load and status line.
type HeartbeatPayload struct {
	Load       float64 `json:"load"`
	StatusLine string  `json:"statusLine,omitempty"`
}

// AgentDiscoveryPayload announces an agent joining, leaving, or announcing
// itself on the mesh.
type AgentDiscoveryPayload struct {
	Action DiscoveryAction `json:"action"`
}

// RoleAssignPayload carries a role assignment instruction.
type RoleAssignPayload struct {
	RoleID     string `json:"roleId"`
	AssignedBy string `json:"assignedBy"`
}

// SecurityChallengePayload is returned by SecurityManager.GenerateChallenge.
type SecurityChallengePayload struct {
	Nonce     string `json:"nonce"`
	Algorithm string `json:"algorithm"`
}

// SecurityResponsePayload carries a challenge response from an agent.
type SecurityResponsePayload struct {
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// Payload is a discriminated union keyed by Type; exactly one of the
// pointer fields matching Type is expected to be non-nil.
type Payload struct {
	Type PayloadType `json:"type"`

	TaskAssign        *TaskAssignPayload        `json:"taskAssign,omitempty"`
	TaskResult        *TaskResultPayload        `json:"taskResult,omitempty"`
	TaskProgress      *TaskProgressPayload      `json:"taskProgress,omitempty"`
	Heartbeat         *HeartbeatPayload         `json:"heartbeat,omitempty"`
	AgentDiscovery    *AgentDiscoveryPayload    `json:"agentDiscovery,omitempty"`
	RoleAssign        *RoleAssignPayload        `json:"roleAssign,omitempty"`
	SecurityChallenge *SecurityChallengePayload `json:"securityChallenge,omitempty"`
	SecurityResponse  *SecurityResponsePayload  `json:"securityResponse,omitempty"`
}

// Validate checks type-specific bounds on the payload's fields.
func (p Payload) Validate() error {
	switch p.Type {
	case PayloadTaskAssign:
		if p.TaskAssign == nil {
			return fmt.Errorf("task.assign payload missing body")
		}
		if len(p.TaskAssign.Task) > MaxTaskDescriptionChars {
			return fmt.Errorf("task description exceeds %d chars", MaxTaskDescriptionChars)
		}
	case PayloadTaskResult:
		if p.TaskResult == nil {
			return fmt.Errorf("task.result payload missing body")
		}
		if len(p.TaskResult.Text) > MaxResultTextChars {
			return fmt.Errorf("result text exceeds %d chars", MaxResultTextChars)
		}
	case PayloadTaskProgress:
		if p.TaskProgress == nil {
			return fmt.Errorf("task.progress payload missing body")
		}
		if len(p.TaskProgress.StatusLine) > MaxStatusLineChars {
			return fmt.Errorf("status line exceeds %d chars", MaxStatusLineChars)
		}
		if p.TaskProgress.Percent != nil {
			if err := ValidatePercent(*p.TaskProgress.Percent); err != nil {
				return err
			}
		}
	case PayloadHeartbeat:
		if p.Heartbeat == nil {
			return fmt.Errorf("heartbeat payload missing body")
		}
		if err := ValidateLoad(p.Heartbeat.Load); err != nil {
			return err
		}
	case PayloadAgentDiscovery:
		if p.AgentDiscovery == nil {
			return fmt.Errorf("agent.discovery payload missing body")
		}
	}
	return ValidatePayloadSize(p)
}

// RequiredPermission maps a payload type to the permission
// SecurityManager.AuthorizeMessage requires. An empty string means
// always allowed.
func (t PayloadType) RequiredPermission() string {
	switch t {
	case PayloadTaskAssign:
		return "task.assign"
	case PayloadRoleAssign:
		return "role.assign"
	case PayloadAgentDiscovery:
		return "agent.register"
	default:
		return ""
	}
}

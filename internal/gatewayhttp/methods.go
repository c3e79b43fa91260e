package gatewayhttp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/security"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// --- multiAgent.roles.* ---

func (h *Handler) rolesList(json.RawMessage) (any, error) {
	return h.orc.Roles.ListRoles(), nil
}

type rolesAssignParams struct {
	Identity   protocol.Identity `json:"identity"`
	RoleID     string            `json:"roleId"`
	AssignedBy string            `json:"assignedBy"`
}

func (h *Handler) rolesAssign(raw json.RawMessage) (any, error) {
	var p rolesAssignParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	assignment, ok := h.orc.Roles.AssignRole(p.Identity, p.RoleID, p.AssignedBy)
	if !ok {
		return nil, fmt.Errorf("unknown role %q or concurrency quota exceeded", p.RoleID)
	}
	return assignment, nil
}

type rolesUnassignParams struct {
	AgentInstanceID string `json:"agentInstanceId"`
}

func (h *Handler) rolesUnassign(raw json.RawMessage) (any, error) {
	var p rolesUnassignParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !h.orc.Roles.UnassignRole(p.AgentInstanceID) {
		return nil, fmt.Errorf("agent %q holds no role assignment", p.AgentInstanceID)
	}
	return struct{}{}, nil
}

// --- multiAgent.tasks.* ---

type tasksSubmitParams struct {
	tasks.CreateOpts
	TargetAgentInstanceID string `json:"targetAgentInstanceId,omitempty"`
	TargetRoleID          string `json:"targetRoleId,omitempty"`
}

func (h *Handler) tasksSubmit(raw json.RawMessage) (any, error) {
	var p tasksSubmitParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	task, err := h.orc.SubmitTask(context.Background(), orchestrator.SubmitTaskOpts{
		CreateOpts:            p.CreateOpts,
		TargetAgentInstanceID: p.TargetAgentInstanceID,
		TargetRoleID:          p.TargetRoleID,
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

type tasksStatusParams struct {
	TaskID string `json:"taskId"`
}

func (h *Handler) tasksStatus(raw json.RawMessage) (any, error) {
	var p tasksStatusParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	task, ok := h.orc.Tasks.GetTask(p.TaskID)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", p.TaskID)
	}
	return task, nil
}

type tasksCancelParams struct {
	TaskID string `json:"taskId"`
}

func (h *Handler) tasksCancel(raw json.RawMessage) (any, error) {
	var p tasksCancelParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !h.orc.Tasks.CancelTask(p.TaskID) {
		return nil, fmt.Errorf("task %q not found or already terminal", p.TaskID)
	}
	return struct{}{}, nil
}

type tasksSummaryParams struct {
	AgentInstanceID string       `json:"agentInstanceId,omitempty"`
	WorkflowPlanID  string       `json:"workflowPlanId,omitempty"`
	Status          tasks.Status `json:"status,omitempty"`
}

func (h *Handler) tasksSummary(raw json.RawMessage) (any, error) {
	var p tasksSummaryParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return h.orc.Tasks.ListTasks(tasks.Filter{
		AgentInstanceID: p.AgentInstanceID,
		WorkflowPlanID:  p.WorkflowPlanID,
		Status:          p.Status,
	}), nil
}

// --- multiAgent.agents.* ---

type agentsRegisterParams struct {
	Identity   protocol.Identity `json:"identity"`
	RoleID     string            `json:"roleId,omitempty"`
	AssignedBy string            `json:"assignedBy,omitempty"`
}

type agentsRegisterResult struct {
	RoleAssigned bool `json:"roleAssigned"`
}

func (h *Handler) agentsRegister(raw json.RawMessage) (any, error) {
	var p agentsRegisterParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !protocol.ValidAgentConfigID(p.Identity.AgentConfigID) {
		return nil, fmt.Errorf("invalid agentConfigId %q", p.Identity.AgentConfigID)
	}
	ok := h.orc.RegisterAgent(p.Identity, p.RoleID, p.AssignedBy)
	return agentsRegisterResult{RoleAssigned: ok}, nil
}

type agentsUnregisterParams struct {
	AgentInstanceID string `json:"agentInstanceId"`
}

func (h *Handler) agentsUnregister(raw json.RawMessage) (any, error) {
	var p agentsUnregisterParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	h.orc.UnregisterAgent(p.AgentInstanceID)
	return struct{}{}, nil
}

func (h *Handler) agentsList(json.RawMessage) (any, error) {
	return h.orc.Router.LocalAgents(), nil
}

// --- multiAgent.security.* ---

type securityAuditParams struct {
	AgentID string `json:"agentId,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (h *Handler) securityAudit(raw json.RawMessage) (any, error) {
	var p securityAuditParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.AgentID != "" {
		return h.orc.Security.GetAgentAuditLog(p.AgentID, p.Limit), nil
	}
	return h.orc.Security.GetAuditLog(p.Limit), nil
}

func (h *Handler) securityPolicySet(raw json.RawMessage) (any, error) {
	var p security.Policy
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" {
		return nil, fmt.Errorf("agentId is required")
	}
	h.orc.Security.SetPolicy(p)
	return struct{}{}, nil
}

// --- multiAgent.work.progress ---

type workProgressParams struct {
	TaskID          string `json:"taskId"`
	ProgressPercent *int   `json:"progressPercent,omitempty"`
	StatusLine      string `json:"statusLine,omitempty"`
}

func (h *Handler) workProgress(raw json.RawMessage) (any, error) {
	var p workProgressParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if !h.orc.Tasks.UpdateProgress(p.TaskID, p.ProgressPercent, p.StatusLine) {
		return nil, fmt.Errorf("task %q not found or already terminal", p.TaskID)
	}
	return struct{}{}, nil
}

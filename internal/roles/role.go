// Package roles implements the Role Manager component of the multi-agent
// coordination core: role definitions, agent-role assignments, and
// concurrency quota enforcement.
package roles

import (
	"fmt"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// Role describes a behavioral profile an agent instance can be assigned.
type Role struct {
	RoleID               string   `json:"roleId" yaml:"roleId"`
	Name                 string   `json:"name" yaml:"name"`
	Description          string   `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPromptFragment string   `json:"systemPromptFragment,omitempty" yaml:"systemPromptFragment,omitempty"`
	AllowedTools         []string `json:"allowedTools,omitempty" yaml:"allowedTools,omitempty"`
	DeniedTools          []string `json:"deniedTools,omitempty" yaml:"deniedTools,omitempty"`
	MaxConcurrent        *int     `json:"maxConcurrent,omitempty" yaml:"maxConcurrent,omitempty"` // 1..64, nil = unbounded
	Priority             *int     `json:"priority,omitempty" yaml:"priority,omitempty"`            // 0..100, nil = default 50
}

// Assignment binds an agent instance to a role.
type Assignment struct {
	AgentInstanceID string    `json:"agentInstanceId"`
	AgentConfigID   string    `json:"agentConfigId"`
	GatewayID       string    `json:"gatewayId"`
	Role            Role      `json:"role"`
	AssignedAt      time.Time `json:"assignedAt"`
	AssignedBy      string    `json:"assignedBy"`
}

// EffectivePriority returns the role's configured priority, or 50 if unset.
func (r Role) EffectivePriority() int {
	if r.Priority == nil {
		return 50
	}
	return *r.Priority
}

// Validate checks roleId pattern and the documented numeric ranges.
func (r Role) Validate() error {
	if !protocol.ValidRoleID(r.RoleID) {
		return fmt.Errorf("invalid roleId %q", r.RoleID)
	}
	if r.MaxConcurrent != nil && (*r.MaxConcurrent < 1 || *r.MaxConcurrent > 64) {
		return fmt.Errorf("maxConcurrent must be in [1,64], got %d", *r.MaxConcurrent)
	}
	if r.Priority != nil && (*r.Priority < 0 || *r.Priority > 100) {
		return fmt.Errorf("priority must be in [0,100], got %d", *r.Priority)
	}
	return nil
}

// Package security implements the Security Manager component of the
// multi-agent coordination core: policy store, HMAC sign/verify, rate
// limiting, permission checks, and audit log.
package security

// Permission is drawn from a fixed enumeration; AuthorizeMessage checks
// the one a payload type requires.
type Permission string

const (
	PermTaskAssign    Permission = "task.assign"
	PermRoleAssign    Permission = "role.assign"
	PermAgentRegister Permission = "agent.register"
	PermReportRead    Permission = "report.read"
	PermConfigRead    Permission = "config.read"
)

// Policy governs what one agent is permitted to do.
type Policy struct {
	AgentID              string       `json:"agentId"`
	Permissions          []Permission `json:"permissions"`
	NetworkAllowlist     []string     `json:"networkAllowlist,omitempty"`
	MaxConcurrentTasks   int          `json:"maxConcurrentTasks"`
	MaxMessagesPerMinute int          `json:"maxMessagesPerMinute"`
	AllowCrossGateway    bool         `json:"allowCrossGateway"`
}

// defaultPolicy is returned by GetPolicy when no policy has been set for
// an agent.
func defaultPolicy(agentID string) Policy {
	return Policy{
		AgentID:              agentID,
		Permissions:          []Permission{PermTaskAssign, PermReportRead, PermConfigRead},
		MaxConcurrentTasks:   8,
		MaxMessagesPerMinute: 120,
		AllowCrossGateway:    false,
	}
}

func (p Policy) hasPermission(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Package protocol defines the wire-level envelope, payload variants, and
// input validation rules shared by every other core component.
package protocol

import (
	"regexp"

	"github.com/google/uuid"
)

// agentConfigIDPattern matches the lowercase token format required of
// agentConfigId values.
var agentConfigIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// roleIDPattern matches the lowercase token format required of roleId
// values.
var roleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Identity is the immutable tuple identifying an agent. Identities are
// value types: a changed identity is a new Identity, never a mutated one.
type Identity struct {
	AgentInstanceID string   `json:"agentInstanceId"`
	AgentConfigID   string   `json:"agentConfigId"`
	GatewayID       string   `json:"gatewayId"`
	RoleID          string   `json:"roleId,omitempty"`
	DisplayName     string   `json:"displayName,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

// NewInstanceID mints a fresh v4 UUID for use as an agentInstanceId.
func NewInstanceID() string {
	return uuid.New().String()
}

// ValidAgentConfigID reports whether id matches the agentConfigId grammar.
func ValidAgentConfigID(id string) bool {
	return agentConfigIDPattern.MatchString(id)
}

// ValidRoleID reports whether id matches the roleId grammar.
func ValidRoleID(id string) bool {
	return roleIDPattern.MatchString(id)
}

// ValidUUIDv4 reports whether s parses as a version-4 UUID.
func ValidUUIDv4(s string) bool {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return parsed.Version() == 4
}

// Validate checks the identity's structural requirements: a v4
// agentInstanceId, a well-formed agentConfigId, and a non-empty
// gatewayId. RoleID, if set, must also match the role grammar.
func (id Identity) Validate() error {
	if !ValidUUIDv4(id.AgentInstanceID) {
		return errInvalidField("agentInstanceId", id.AgentInstanceID)
	}
	if !ValidAgentConfigID(id.AgentConfigID) {
		return errInvalidField("agentConfigId", id.AgentConfigID)
	}
	if id.GatewayID == "" {
		return errInvalidField("gatewayId", id.GatewayID)
	}
	if id.RoleID != "" && !ValidRoleID(id.RoleID) {
		return errInvalidField("roleId", id.RoleID)
	}
	return nil
}

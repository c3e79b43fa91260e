package roles

import (
	"sort"
	"sync"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// Manager owns role definitions and the current agent-role assignments,
// enforcing per-role concurrency quotas.
type Manager struct {
	mu          sync.RWMutex
	roles       map[string]Role
	assignments map[string]Assignment // agentInstanceId -> Assignment
	now         func() time.Time
}

// New creates a Manager seeded with the six built-in roles.
func New() *Manager {
	m := &Manager{
		roles:       make(map[string]Role),
		assignments: make(map[string]Assignment),
		now:         time.Now,
	}
	m.seedBuiltins()
	return m
}

func (m *Manager) seedBuiltins() {
	for _, r := range builtinRoles() {
		m.roles[r.RoleID] = r
	}
}

// DefineRole upserts a role definition.
func (m *Manager) DefineRole(role Role) error {
	if err := role.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.RoleID] = role
	return nil
}

// RemoveRole deletes a role definition without cascading to existing
// assignments.
func (m *Manager) RemoveRole(roleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, roleID)
}

// AssignRole assigns roleID to identity, returning the new Assignment.
// Returns (Assignment{}, false) if the role is undefined or assigning
// would exceed the role's maxConcurrent quota. An agent already holding
// the role is not double-counted against its own quota.
func (m *Manager) AssignRole(identity protocol.Identity, roleID, assignedBy string) (Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleID]
	if !ok {
		return Assignment{}, false
	}

	if role.MaxConcurrent != nil {
		count := m.countAgentsWithRoleLocked(roleID)
		if prior, had := m.assignments[identity.AgentInstanceID]; had && prior.Role.RoleID == roleID {
			count--
		}
		if count >= *role.MaxConcurrent {
			return Assignment{}, false
		}
	}

	assignment := Assignment{
		AgentInstanceID: identity.AgentInstanceID,
		AgentConfigID:   identity.AgentConfigID,
		GatewayID:       identity.GatewayID,
		Role:            role,
		AssignedAt:      m.now(),
		AssignedBy:      assignedBy,
	}
	m.assignments[identity.AgentInstanceID] = assignment
	return assignment, true
}

// UnassignRole removes the assignment for instanceID, reporting whether
// one existed.
func (m *Manager) UnassignRole(instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[instanceID]; !ok {
		return false
	}
	delete(m.assignments, instanceID)
	return true
}

// CountAgentsWithRole returns how many agent instances currently hold roleID.
func (m *Manager) CountAgentsWithRole(roleID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countAgentsWithRoleLocked(roleID)
}

func (m *Manager) countAgentsWithRoleLocked(roleID string) int {
	n := 0
	for _, a := range m.assignments {
		if a.Role.RoleID == roleID {
			n++
		}
	}
	return n
}

// GetAgentsWithRole returns the assignments for every agent holding roleID.
func (m *Manager) GetAgentsWithRole(roleID string) []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Assignment, 0)
	for _, a := range m.assignments {
		if a.Role.RoleID == roleID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentInstanceID < out[j].AgentInstanceID })
	return out
}

// GetAssignment returns the current assignment for instanceID, if any.
func (m *Manager) GetAssignment(instanceID string) (Assignment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[instanceID]
	return a, ok
}

// ListAssignments returns a snapshot of every current assignment.
func (m *Manager) ListAssignments() []Assignment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentInstanceID < out[j].AgentInstanceID })
	return out
}

// ListRoles returns a snapshot of every defined role.
func (m *Manager) ListRoles() []Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out
}

// GetRole returns the role definition for roleID, if any.
func (m *Manager) GetRole(roleID string) (Role, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[roleID]
	return r, ok
}

// State is a deep-copyable checkpoint of the Manager's roles and
// assignments, for exportState/importState.
type State struct {
	Roles       []Role       `json:"roles"`
	Assignments []Assignment `json:"assignments"`
}

// ExportState returns a deep-copied snapshot suitable for persistence by
// an external collaborator.
func (m *Manager) ExportState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := State{
		Roles:       make([]Role, 0, len(m.roles)),
		Assignments: make([]Assignment, 0, len(m.assignments)),
	}
	cloneRole := func(r Role) Role {
		if r.MaxConcurrent != nil {
			v := *r.MaxConcurrent
			r.MaxConcurrent = &v
		}
		if r.Priority != nil {
			v := *r.Priority
			r.Priority = &v
		}
		r.AllowedTools = append(r.AllowedTools[:0:0], r.AllowedTools...)
		r.DeniedTools = append(r.DeniedTools[:0:0], r.DeniedTools...)
		return r
	}
	for _, r := range m.roles {
		state.Roles = append(state.Roles, cloneRole(r))
	}
	for _, a := range m.assignments {
		a.Role = cloneRole(a.Role)
		state.Assignments = append(state.Assignments, a)
	}
	return state
}

// ImportState replaces the Manager's roles and assignments with state, a
// total replace. Built-in roles absent from state are added back so they
// are never lost entirely, but a built-in present in state (including one
// redefined with different fields) is kept as imported rather than
// overwritten — importState(exportState()) must be the identity.
func (m *Manager) ImportState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = make(map[string]Role, len(state.Roles))
	m.assignments = make(map[string]Assignment, len(state.Assignments))
	for _, r := range state.Roles {
		m.roles[r.RoleID] = r
	}
	for _, a := range state.Assignments {
		m.assignments[a.AgentInstanceID] = a
	}
	for _, r := range builtinRoles() {
		if _, ok := m.roles[r.RoleID]; !ok {
			m.roles[r.RoleID] = r
		}
	}
}

package orchestrator

import "github.com/cliaimonitor/agentmesh/internal/protocol"

// RegisterAgent adds identity to the Router's local-agent map. If roleID
// is non-empty, it also attempts a role assignment; the returned bool
// reports whether that assignment succeeded (always true when roleID is
// empty).
func (o *Orchestrator) RegisterAgent(identity protocol.Identity, roleID, assignedBy string) bool {
	o.Router.RegisterLocalAgent(identity)
	if roleID == "" {
		return true
	}
	_, ok := o.Roles.AssignRole(identity, roleID, assignedBy)
	return ok
}

// UnregisterAgent removes instanceID from the Router's local-agent map
// and clears any role assignment it held.
func (o *Orchestrator) UnregisterAgent(instanceID string) {
	o.Router.UnregisterLocalAgent(instanceID)
	o.Roles.UnassignRole(instanceID)
}

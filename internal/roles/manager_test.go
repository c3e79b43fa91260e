package roles

import (
	"testing"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

func testIdentity(agentConfigID string) protocol.Identity {
	return protocol.Identity{
		AgentInstanceID: protocol.NewInstanceID(),
		AgentConfigID:   agentConfigID,
		GatewayID:       "gw1",
	}
}

func TestNewSeedsBuiltinRoles(t *testing.T) {
	m := New()
	roles := m.ListRoles()
	if len(roles) != 6 {
		t.Fatalf("expected 6 builtin roles, got %d", len(roles))
	}
	orchestrator, ok := m.GetRole("orchestrator")
	if !ok || orchestrator.EffectivePriority() != 100 {
		t.Errorf("expected orchestrator role at priority 100, got %+v ok=%v", orchestrator, ok)
	}
	coder, ok := m.GetRole("coder")
	if !ok || coder.EffectivePriority() != 60 {
		t.Errorf("expected coder role at priority 60, got %+v ok=%v", coder, ok)
	}
}

func TestAssignRoleEnforcesMaxConcurrent(t *testing.T) {
	m := New()
	quota := 2
	if err := m.DefineRole(Role{RoleID: "worker", Name: "Worker", MaxConcurrent: &quota}); err != nil {
		t.Fatalf("DefineRole failed: %v", err)
	}

	a1 := testIdentity("worker-1")
	a2 := testIdentity("worker-2")
	a3 := testIdentity("worker-3")

	if _, ok := m.AssignRole(a1, "worker", "tester"); !ok {
		t.Fatal("first assignment should succeed")
	}
	if _, ok := m.AssignRole(a2, "worker", "tester"); !ok {
		t.Fatal("second assignment should succeed (quota is 2)")
	}
	if _, ok := m.AssignRole(a3, "worker", "tester"); ok {
		t.Fatal("third assignment should be rejected: quota exceeded")
	}
	if got := m.CountAgentsWithRole("worker"); got != 2 {
		t.Errorf("expected 2 agents holding worker role, got %d", got)
	}
}

func TestAssignRoleReassignDoesNotDoubleCount(t *testing.T) {
	m := New()
	quota := 1
	if err := m.DefineRole(Role{RoleID: "solo", Name: "Solo", MaxConcurrent: &quota}); err != nil {
		t.Fatalf("DefineRole failed: %v", err)
	}

	a1 := testIdentity("agent-1")
	if _, ok := m.AssignRole(a1, "solo", "tester"); !ok {
		t.Fatal("first assignment should succeed")
	}
	// Re-assigning the same agent to the same at-capacity role must not be
	// rejected by its own prior occupancy.
	if _, ok := m.AssignRole(a1, "solo", "tester"); !ok {
		t.Fatal("re-assigning the same agent to its own role should not be blocked by its own occupancy")
	}
}

func TestAssignRoleUnknownRoleFails(t *testing.T) {
	m := New()
	a1 := testIdentity("agent-1")
	if _, ok := m.AssignRole(a1, "nonexistent", "tester"); ok {
		t.Fatal("assigning an undefined role should fail")
	}
}

func TestUnassignRole(t *testing.T) {
	m := New()
	a1 := testIdentity("agent-1")
	m.AssignRole(a1, "coder", "tester")
	if !m.UnassignRole(a1.AgentInstanceID) {
		t.Fatal("expected unassign to report true for an existing assignment")
	}
	if m.UnassignRole(a1.AgentInstanceID) {
		t.Fatal("expected unassign to report false for an already-removed assignment")
	}
}

func TestRemoveRoleDoesNotCascade(t *testing.T) {
	m := New()
	a1 := testIdentity("agent-1")
	assignment, ok := m.AssignRole(a1, "coder", "tester")
	if !ok {
		t.Fatal("assignment should succeed")
	}
	m.RemoveRole("coder")
	if _, ok := m.GetRole("coder"); ok {
		t.Fatal("role definition should be gone")
	}
	got, ok := m.GetAssignment(a1.AgentInstanceID)
	if !ok || got.Role.RoleID != assignment.Role.RoleID {
		t.Fatal("existing assignment should survive role removal")
	}
}

func TestExportImportStateRoundTrips(t *testing.T) {
	m := New()
	a1 := testIdentity("agent-1")
	m.AssignRole(a1, "coder", "tester")

	state := m.ExportState()

	m2 := New()
	m2.ImportState(state)

	if _, ok := m2.GetAssignment(a1.AgentInstanceID); !ok {
		t.Fatal("expected imported state to carry the assignment")
	}
	if len(m2.ListRoles()) < 6 {
		t.Fatal("expected builtin roles to remain present after import")
	}
}

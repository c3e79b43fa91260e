package roles

func intPtr(v int) *int { return &v }

// builtinRoles are the six roles seeded on construction; ImportState adds
// back any of them absent from the imported state.
func builtinRoles() []Role {
	return []Role{
		{RoleID: "orchestrator", Name: "Orchestrator", Description: "Coordinates task assignment and agent lifecycle.", Priority: intPtr(100)},
		{RoleID: "monitor", Name: "Monitor", Description: "Observes system health and surfaces alerts.", Priority: intPtr(80)},
		{RoleID: "reviewer", Name: "Reviewer", Description: "Reviews work produced by other agents.", Priority: intPtr(70)},
		{RoleID: "coder", Name: "Coder", Description: "Implements tasks.", Priority: intPtr(60)},
		{RoleID: "researcher", Name: "Researcher", Description: "Gathers and synthesizes information.", Priority: intPtr(50)},
		{RoleID: "executor", Name: "Executor", Description: "Carries out discrete, well-scoped actions.", Priority: intPtr(40)},
	}
}

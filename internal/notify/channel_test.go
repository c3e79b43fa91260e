package notify

import (
	"strings"
	"testing"

	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

func lookupFixture(tasksByID map[string]tasks.TrackedTask) TaskLookup {
	return func(taskID string) (tasks.TrackedTask, bool) {
		task, ok := tasksByID[taskID]
		return task, ok
	}
}

func TestManagerChannelTaskFailureEscalates(t *testing.T) {
	manager := NewDefaultManager()
	channel := NewManagerChannel(manager, lookupFixture(map[string]tasks.TrackedTask{
		"t-1": {TaskID: "t-1", Task: "deploy service", Status: tasks.StatusFailed,
			Result: &tasks.Result{Status: protocol.ResultFailure, Text: "connection refused"}},
	}))

	if err := channel.Send(orchestrator.Event{Type: orchestrator.EventTaskCompleted, Detail: "t-1"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	state := manager.GetBannerState()
	if state.Type != BannerTypeError {
		t.Errorf("expected error banner for a failed task, got %s", state.Type)
	}
	if !containsAll(state.Message, "t-1", "deploy service", "connection refused") {
		t.Errorf("expected message to surface task details, got %q", state.Message)
	}
}

func TestManagerChannelTaskSuccessDoesNotEscalate(t *testing.T) {
	manager := NewDefaultManager()
	channel := NewManagerChannel(manager, lookupFixture(map[string]tasks.TrackedTask{
		"t-2": {TaskID: "t-2", Task: "run tests", Status: tasks.StatusCompleted,
			Result: &tasks.Result{Status: protocol.ResultSuccess, Text: "all green"}},
	}))

	channel.Send(orchestrator.Event{Type: orchestrator.EventTaskCompleted, Detail: "t-2"})

	state := manager.GetBannerState()
	if state.Type != BannerTypeInfo {
		t.Errorf("expected info banner for a successful task, got %s", state.Type)
	}
}

func TestManagerChannelTaskPartialIsWarning(t *testing.T) {
	manager := NewDefaultManager()
	channel := NewManagerChannel(manager, lookupFixture(map[string]tasks.TrackedTask{
		"t-3": {TaskID: "t-3", Task: "migrate schema", Status: tasks.StatusCompleted,
			Result: &tasks.Result{Status: protocol.ResultPartial, Text: "3 of 5 tables migrated"}},
	}))

	channel.Send(orchestrator.Event{Type: orchestrator.EventTaskCompleted, Detail: "t-3"})

	state := manager.GetBannerState()
	if state.Type != BannerTypeWarning {
		t.Errorf("expected warning banner for a partial result, got %s", state.Type)
	}
}

func TestManagerChannelShouldNotifySuppressesOffStrideProgress(t *testing.T) {
	percent := 41
	task := tasks.TrackedTask{TaskID: "t-4", ProgressPercent: &percent}
	channel := NewManagerChannel(NewDefaultManager(), lookupFixture(map[string]tasks.TrackedTask{"t-4": task}))

	if channel.ShouldNotify(orchestrator.Event{Type: orchestrator.EventTaskProgress, Detail: "t-4"}) {
		t.Error("expected off-stride progress percent to be suppressed")
	}
}

func TestManagerChannelShouldNotifyAllowsOnStrideProgress(t *testing.T) {
	percent := 50
	task := tasks.TrackedTask{TaskID: "t-5", ProgressPercent: &percent}
	channel := NewManagerChannel(NewDefaultManager(), lookupFixture(map[string]tasks.TrackedTask{"t-5": task}))

	if !channel.ShouldNotify(orchestrator.Event{Type: orchestrator.EventTaskProgress, Detail: "t-5"}) {
		t.Error("expected on-stride progress percent to be allowed through")
	}
}

func TestManagerChannelShouldNotifyAlwaysAllowsNonProgressEvents(t *testing.T) {
	channel := NewManagerChannel(NewDefaultManager(), lookupFixture(nil))

	if !channel.ShouldNotify(orchestrator.Event{Type: orchestrator.EventAgentJoined, Detail: protocol.Identity{}}) {
		t.Error("expected agent.joined to always be allowed through")
	}
}

func TestManagerChannelAgentLeftEscalates(t *testing.T) {
	manager := NewDefaultManager()
	channel := NewManagerChannel(manager, lookupFixture(nil))
	identity := protocol.Identity{AgentInstanceID: "inst-1", AgentConfigID: "coder-1", GatewayID: "gw2"}

	channel.Send(orchestrator.Event{Type: orchestrator.EventAgentLeft, Detail: identity})

	state := manager.GetBannerState()
	if state.Type != BannerTypeWarning {
		t.Errorf("expected warning banner for agent.left, got %s", state.Type)
	}
	if !containsAll(state.Message, "coder-1", "gw2", "left") {
		t.Errorf("expected message to name the departing agent, got %q", state.Message)
	}
}

func TestManagerChannelAgentJoinedDoesNotEscalate(t *testing.T) {
	manager := NewDefaultManager()
	channel := NewManagerChannel(manager, lookupFixture(nil))
	identity := protocol.Identity{AgentInstanceID: "inst-2", AgentConfigID: "researcher-1", GatewayID: "gw3"}

	channel.Send(orchestrator.Event{Type: orchestrator.EventAgentJoined, Detail: identity})

	state := manager.GetBannerState()
	if state.Type != BannerTypeInfo {
		t.Errorf("expected info banner for agent.joined, got %s", state.Type)
	}
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

package tasks

import (
	"testing"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

func TestTaskLifecycleHappyPath(t *testing.T) {
	tr := New()
	task, err := tr.CreateTask(CreateOpts{Task: "build the thing"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", task.Status)
	}

	if !tr.AssignTask(task.TaskID, "agent-1") {
		t.Fatal("assign from pending should succeed")
	}
	got, _ := tr.GetTask(task.TaskID)
	if got.Status != StatusAssigned || got.AssignedTo != "agent-1" || got.AssignedAt == nil {
		t.Fatalf("unexpected state after assign: %+v", got)
	}

	if !tr.StartTask(task.TaskID) {
		t.Fatal("start from assigned should succeed")
	}
	got, _ = tr.GetTask(task.TaskID)
	if got.Status != StatusInProgress || got.StartedAt == nil {
		t.Fatalf("unexpected state after start: %+v", got)
	}

	percent := 50
	if !tr.UpdateProgress(task.TaskID, &percent, "halfway there") {
		t.Fatal("update progress should succeed while in-progress")
	}

	if !tr.CompleteTask(task.TaskID, Result{Status: protocol.ResultSuccess, Text: "done"}) {
		t.Fatal("complete should succeed from in-progress")
	}
	got, _ = tr.GetTask(task.TaskID)
	if got.Status != StatusCompleted || got.CompletedAt == nil || got.ProgressPercent == nil || *got.ProgressPercent != 100 {
		t.Fatalf("unexpected state after complete: %+v", got)
	}

	list := tr.ListTasks(Filter{AgentInstanceID: "agent-1"})
	if len(list) != 1 || list[0].TaskID != task.TaskID {
		t.Fatalf("expected agent index to resolve the task, got %+v", list)
	}
}

func TestAssignOnlyFromPendingOrFailed(t *testing.T) {
	tr := New()
	task, _ := tr.CreateTask(CreateOpts{Task: "x"})
	tr.AssignTask(task.TaskID, "agent-1")
	if tr.AssignTask(task.TaskID, "agent-2") {
		t.Fatal("assign should fail once already assigned")
	}
}

func TestRetryRequiresFailedOrTimeoutAndRespectsMaxRetries(t *testing.T) {
	tr := New()
	maxRetries := 1
	task, _ := tr.CreateTask(CreateOpts{Task: "flaky", MaxRetries: &maxRetries})

	tr.AssignTask(task.TaskID, "agent-1")
	tr.StartTask(task.TaskID)

	if tr.RetryTask(task.TaskID) {
		t.Fatal("retry should fail while in-progress")
	}

	tr.CompleteTask(task.TaskID, Result{Status: protocol.ResultFailure})
	got, _ := tr.GetTask(task.TaskID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", got.Status)
	}

	if !tr.RetryTask(task.TaskID) {
		t.Fatal("first retry should succeed (retryCount 0 < maxRetries 1)")
	}
	got, _ = tr.GetTask(task.TaskID)
	if got.Status != StatusPending || got.RetryCount != 1 || got.AssignedTo != "" {
		t.Fatalf("unexpected state after retry: %+v", got)
	}

	tr.AssignTask(task.TaskID, "agent-1")
	tr.StartTask(task.TaskID)
	tr.CompleteTask(task.TaskID, Result{Status: protocol.ResultFailure})

	if tr.RetryTask(task.TaskID) {
		t.Fatal("second retry should fail: retryCount 1 >= maxRetries 1")
	}
}

func TestCancelRejectsTerminalStates(t *testing.T) {
	tr := New()
	task, _ := tr.CreateTask(CreateOpts{Task: "x"})
	tr.AssignTask(task.TaskID, "agent-1")
	tr.StartTask(task.TaskID)
	tr.CompleteTask(task.TaskID, Result{Status: protocol.ResultSuccess})

	if tr.CancelTask(task.TaskID) {
		t.Fatal("cancel should fail once completed")
	}
}

func TestCancelAllowedFromPendingAssignedInProgress(t *testing.T) {
	tr := New()
	task, _ := tr.CreateTask(CreateOpts{Task: "x"})
	if !tr.CancelTask(task.TaskID) {
		t.Fatal("cancel from pending should succeed")
	}
	got, _ := tr.GetTask(task.TaskID)
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	assigned, _ := tr.CreateTask(CreateOpts{Task: "y"})
	tr.AssignTask(assigned.TaskID, "agent-1")
	if !tr.CancelTask(assigned.TaskID) {
		t.Fatal("cancel from assigned should succeed")
	}

	inProgress, _ := tr.CreateTask(CreateOpts{Task: "z"})
	tr.AssignTask(inProgress.TaskID, "agent-1")
	tr.StartTask(inProgress.TaskID)
	if !tr.CancelTask(inProgress.TaskID) {
		t.Fatal("cancel from in-progress should succeed")
	}
}

func TestWorkflowStepIndexCorrelatesResults(t *testing.T) {
	tr := New()
	task, _ := tr.CreateTask(CreateOpts{Task: "x", WorkflowStepID: "step-1", WorkflowPlanID: "plan-1"})

	found, ok := tr.GetTaskByWorkflowStep("step-1")
	if !ok || found.TaskID != task.TaskID {
		t.Fatal("expected workflow step index to resolve the task")
	}

	byPlan := tr.ListTasks(Filter{WorkflowPlanID: "plan-1"})
	if len(byPlan) != 1 || byPlan[0].TaskID != task.TaskID {
		t.Fatal("expected workflow plan index to resolve the task")
	}
}

func TestGetSummaryComputesAtRiskTasks(t *testing.T) {
	tr := New()
	now := time.Now()
	tr.now = func() time.Time { return now }

	deadline := now.Add(10 * time.Minute)
	task, _ := tr.CreateTask(CreateOpts{Task: "urgent", Deadline: &deadline})
	_ = task

	// created "now", deadline in 10 minutes: elapsed window is effectively
	// 10 minutes total with 0 minutes spent, so remaining/total = 1.0 — not
	// at risk yet. Advance the clock to 9 minutes in to cross the 20% mark.
	tr.now = func() time.Time { return now.Add(9 * time.Minute) }
	summary := tr.GetSummary()
	if summary.AtRiskCount != 1 {
		t.Errorf("expected 1 at-risk task, got %d", summary.AtRiskCount)
	}
}

func TestGetAgentWorkloads(t *testing.T) {
	tr := New()
	task, _ := tr.CreateTask(CreateOpts{Task: "x"})
	tr.AssignTask(task.TaskID, "agent-1")
	tr.StartTask(task.TaskID)
	tr.CompleteTask(task.TaskID, Result{Status: protocol.ResultSuccess})

	workloads := tr.GetAgentWorkloads()
	if len(workloads) != 1 || workloads[0].AgentInstanceID != "agent-1" || workloads[0].CompletedTasks != 1 {
		t.Fatalf("unexpected workloads: %+v", workloads)
	}
}

func TestCleanupRemovesOldTerminalTasks(t *testing.T) {
	tr := New()
	old := time.Now().Add(-48 * time.Hour)
	tr.now = func() time.Time { return old }
	task, _ := tr.CreateTask(CreateOpts{Task: "x"})
	tr.CancelTask(task.TaskID)

	tr.now = time.Now
	removed := tr.Cleanup(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 task removed, got %d", removed)
	}
	if _, ok := tr.GetTask(task.TaskID); ok {
		t.Fatal("expected task to be gone after cleanup")
	}
}

func TestListTasksSortedByPriorityDescending(t *testing.T) {
	tr := New()
	tr.CreateTask(CreateOpts{Task: "low", Priority: 10})
	tr.CreateTask(CreateOpts{Task: "high", Priority: 90})
	tr.CreateTask(CreateOpts{Task: "mid", Priority: 50})

	list := tr.ListTasks(Filter{})
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Priority < list[i].Priority {
			t.Fatalf("expected descending priority order, got %+v", list)
		}
	}
}

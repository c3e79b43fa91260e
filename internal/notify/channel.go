package notify

import (
	"fmt"

	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

// TaskLookup resolves a taskID to its tracked state. task.completed and
// task.progress events carry only a taskID in Event.Detail; ManagerChannel
// needs the task's actual status/result/progress to render anything more
// useful than the bare id, so it is handed a lookup instead of the Tracker
// itself to keep this package from depending on tasks.Tracker's full API.
type TaskLookup func(taskID string) (tasks.TrackedTask, bool)

// progressReportStride is how often (in percentage points) a task.progress
// event is worth surfacing. Agents may report progress on every percent;
// flashing a banner that often would bury everything else.
const progressReportStride = 25

// ManagerChannel adapts a Manager to the Channel interface so it can be
// registered with a Router and driven directly off Orchestrator events
// (via Orchestrator.OnEvent(nil, router.Route)).
type ManagerChannel struct {
	manager    *Manager
	lookupTask TaskLookup
}

// NewManagerChannel wraps manager for Router registration. lookupTask is
// typically Tracker.GetTask.
func NewManagerChannel(manager *Manager, lookupTask TaskLookup) *ManagerChannel {
	return &ManagerChannel{manager: manager, lookupTask: lookupTask}
}

func (c *ManagerChannel) Name() string { return "manager" }

// ShouldNotify suppresses progress updates between report strides so a
// chatty agent doesn't bury task.completed/agent.joined/agent.left events
// under routine percentage ticks.
func (c *ManagerChannel) ShouldNotify(event orchestrator.Event) bool {
	if !c.manager.IsEnabled() {
		return false
	}
	if event.Type != orchestrator.EventTaskProgress {
		return true
	}
	taskID, _ := event.Detail.(string)
	task, ok := c.lookupTask(taskID)
	if !ok || task.ProgressPercent == nil {
		return false
	}
	return *task.ProgressPercent%progressReportStride == 0
}

// Send renders event to a human-readable message driven by the task/role
// domain data it actually refers to, routing it at a severity that
// reflects the domain outcome rather than the event type alone.
func (c *ManagerChannel) Send(event orchestrator.Event) error {
	switch event.Type {
	case orchestrator.EventTaskCompleted:
		return c.sendTaskOutcome(event)
	case orchestrator.EventTaskProgress:
		return c.sendTaskProgress(event)
	case orchestrator.EventAgentJoined:
		return c.sendAgentChange(event, "joined", BannerTypeInfo, false)
	case orchestrator.EventAgentLeft:
		return c.sendAgentChange(event, "left", BannerTypeWarning, true)
	default:
		return c.manager.Notify(BannerTypeInfo, string(event.Type), false)
	}
}

// sendTaskOutcome escalates a failed or timed-out task to toast/terminal
// (an operator likely needs to reassign or retry it), shows a partial
// result as a warning, and reports anything else as routine.
func (c *ManagerChannel) sendTaskOutcome(event orchestrator.Event) error {
	taskID, _ := event.Detail.(string)
	task, ok := c.lookupTask(taskID)
	if !ok {
		return c.manager.Notify(BannerTypeInfo, fmt.Sprintf("task %s completed", taskID), false)
	}

	var resultStatus protocol.ResultStatus
	if task.Result != nil {
		resultStatus = task.Result.Status
	}

	switch resultStatus {
	case protocol.ResultFailure, protocol.ResultTimeout:
		message := fmt.Sprintf("task %s (%q) %s: %s", task.TaskID, task.Task, resultStatus, resultText(task.Result))
		return c.manager.Notify(BannerTypeError, message, true)
	case protocol.ResultPartial:
		message := fmt.Sprintf("task %s (%q) completed partially: %s", task.TaskID, task.Task, resultText(task.Result))
		return c.manager.Notify(BannerTypeWarning, message, false)
	default:
		message := fmt.Sprintf("task %s (%q) completed: %s", task.TaskID, task.Task, resultText(task.Result))
		return c.manager.Notify(BannerTypeInfo, message, false)
	}
}

func (c *ManagerChannel) sendTaskProgress(event orchestrator.Event) error {
	taskID, _ := event.Detail.(string)
	task, ok := c.lookupTask(taskID)
	if !ok {
		return nil
	}
	percent := 0
	if task.ProgressPercent != nil {
		percent = *task.ProgressPercent
	}
	message := fmt.Sprintf("task %s: %d%%", task.TaskID, percent)
	if task.StatusLine != "" {
		message = fmt.Sprintf("%s - %s", message, task.StatusLine)
	}
	return c.manager.Notify(BannerTypeInfo, message, false)
}

// sendAgentChange renders an agent.joined/agent.left event using the
// identity fields the mesh actually has, rather than Go's default %v
// struct dump.
func (c *ManagerChannel) sendAgentChange(event orchestrator.Event, verb string, bannerType BannerType, escalate bool) error {
	identity, _ := event.Detail.(protocol.Identity)
	message := fmt.Sprintf("agent %s (gateway %s) %s the mesh", identity.AgentConfigID, identity.GatewayID, verb)
	return c.manager.Notify(bannerType, message, escalate)
}

func resultText(r *tasks.Result) string {
	if r == nil || r.Text == "" {
		return "no details reported"
	}
	return r.Text
}

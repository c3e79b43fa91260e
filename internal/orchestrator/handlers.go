package orchestrator

import (
	"context"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/router"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

// wireBuiltinHandlers subscribes the four handlers the Orchestrator owns
// by construction.
func (o *Orchestrator) wireBuiltinHandlers() {
	o.unsubscribes = append(o.unsubscribes,
		o.Router.Subscribe(router.Filter{PayloadType: protocol.PayloadTaskResult}, o.handleTaskResult),
		o.Router.Subscribe(router.Filter{PayloadType: protocol.PayloadTaskProgress}, o.handleTaskProgress),
		o.Router.Subscribe(router.Filter{PayloadType: protocol.PayloadHeartbeat}, o.handleHeartbeat),
		o.Router.Subscribe(router.Filter{PayloadType: protocol.PayloadAgentDiscovery}, o.handleAgentDiscovery),
	)
}

// handleTaskResult resolves the tracked task via the workflowStepId index
// and completes it. A result with no workflowStepId, or one that does not
// resolve to a tracked task, is silently ignored — callers
// that need to complete a task by id directly should use Tasks.GetTask
// and Tasks.CompleteTask instead of relying on step correlation.
func (o *Orchestrator) handleTaskResult(ctx context.Context, msg protocol.MultiAgentMessage) error {
	if msg.Payload.TaskResult == nil || msg.Payload.TaskResult.WorkflowStepID == "" {
		return nil
	}
	task, ok := o.Tasks.GetTaskByWorkflowStep(msg.Payload.TaskResult.WorkflowStepID)
	if !ok {
		return nil
	}

	result := tasks.Result{Status: msg.Payload.TaskResult.Status, Text: msg.Payload.TaskResult.Text}
	if o.Tasks.CompleteTask(task.TaskID, result) {
		o.events.Emit(Event{Type: EventTaskCompleted, Detail: task.TaskID})
	}
	return nil
}

// handleTaskProgress resolves the tracked task via the workflowStepId
// index and records its progress.
func (o *Orchestrator) handleTaskProgress(ctx context.Context, msg protocol.MultiAgentMessage) error {
	if msg.Payload.TaskProgress == nil || msg.Payload.TaskProgress.WorkflowStepID == "" {
		return nil
	}
	task, ok := o.Tasks.GetTaskByWorkflowStep(msg.Payload.TaskProgress.WorkflowStepID)
	if !ok {
		return nil
	}

	if o.Tasks.UpdateProgress(task.TaskID, msg.Payload.TaskProgress.Percent, msg.Payload.TaskProgress.StatusLine) {
		o.events.Emit(Event{Type: EventTaskProgress, Detail: task.TaskID})
	}
	return nil
}

// handleHeartbeat stores the sender's latest load/status, keyed by
// agentInstanceId.
func (o *Orchestrator) handleHeartbeat(ctx context.Context, msg protocol.MultiAgentMessage) error {
	if msg.Payload.Heartbeat == nil {
		return nil
	}
	o.mu.Lock()
	o.heartbeats[msg.Envelope.From.AgentInstanceID] = heartbeatRecord{
		Payload:    *msg.Payload.Heartbeat,
		ReceivedAt: o.now(),
	}
	o.mu.Unlock()
	return nil
}

// handleAgentDiscovery emits agent.joined/agent.left for non-local
// announcements only. Start/Stop's announceLocalAgents broadcasts a
// discovery message for every local agent, and the Router routes that
// message back through this same handler, so local agents' own
// join/leave is filtered out here rather than reported as a discovery
// event.
func (o *Orchestrator) handleAgentDiscovery(ctx context.Context, msg protocol.MultiAgentMessage) error {
	if msg.Payload.AgentDiscovery == nil {
		return nil
	}
	if msg.Envelope.From.GatewayID == o.cfg.LocalGatewayID {
		return nil
	}
	switch msg.Payload.AgentDiscovery.Action {
	case protocol.DiscoveryJoin, protocol.DiscoveryAnnounce:
		o.events.Emit(Event{Type: EventAgentJoined, Detail: msg.Envelope.From})
	case protocol.DiscoveryLeave:
		o.events.Emit(Event{Type: EventAgentLeft, Detail: msg.Envelope.From})
	}
	return nil
}

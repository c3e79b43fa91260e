// Package orchestrator composes the Router, Role Manager, Work Tracker,
// and Security Manager into the coordination core's top-level entry
// point: agent selection, built-in message handlers, and lifecycle.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/roles"
	"github.com/cliaimonitor/agentmesh/internal/router"
	"github.com/cliaimonitor/agentmesh/internal/security"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

// orchestratorInstanceID, orchestratorConfigID and orchestratorRoleID are
// the fixed identity system-originated messages are sent from.
const (
	orchestratorInstanceID = "00000000-0000-0000-0000-000000000000"
	orchestratorConfigID   = "__orchestrator__"
	orchestratorRoleID     = "orchestrator"
)

// defaultCleanupInterval is how often Start's background loop calls
// Tasks.Cleanup.
const defaultCleanupInterval = time.Hour

// Config configures an Orchestrator. The zero value is valid and uses
// documented defaults.
type Config struct {
	LocalGatewayID  string
	SharedSecret    []byte // nil => Security Manager mints a random one
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig(localGatewayID string) Config {
	return Config{
		LocalGatewayID:  localGatewayID,
		CleanupInterval: defaultCleanupInterval,
		CleanupMaxAge:   24 * time.Hour,
	}
}

type heartbeatRecord struct {
	Payload    protocol.HeartbeatPayload
	ReceivedAt time.Time
}

// Orchestrator is the coordination core's top-level object: it exclusively
// owns its four sub-managers.
type Orchestrator struct {
	cfg Config

	Router   *router.Router
	Roles    *roles.Manager
	Tasks    *tasks.Tracker
	Security *security.Manager
	events   *emitter

	mu         sync.RWMutex
	heartbeats map[string]heartbeatRecord

	unsubscribes []func()

	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
	now     func() time.Time
}

// New constructs an Orchestrator and subscribes its built-in handlers.
func New(cfg Config, sendToPeer router.MessageSender) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		Router:     router.New(cfg.LocalGatewayID, sendToPeer),
		Roles:      roles.New(),
		Tasks:      tasks.New(),
		Security:   security.NewManager(cfg.SharedSecret),
		events:     newEmitter(),
		heartbeats: make(map[string]heartbeatRecord),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	o.wireBuiltinHandlers()
	return o
}

// Identity returns the fixed identity used as "from" for system-originated
// messages.
func (o *Orchestrator) Identity() protocol.Identity {
	return protocol.Identity{
		AgentInstanceID: orchestratorInstanceID,
		AgentConfigID:   orchestratorConfigID,
		GatewayID:       o.cfg.LocalGatewayID,
		RoleID:          orchestratorRoleID,
	}
}

// OnEvent subscribes fn to the given event types (nil/empty = all).
func (o *Orchestrator) OnEvent(types []EventType, fn func(Event)) func() {
	return o.events.OnEvent(types, fn)
}

// Start launches the periodic cleanup loop and announces local agents.
func (o *Orchestrator) Start(ctx context.Context) {
	interval := o.cfg.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	maxAge := o.cfg.CleanupMaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	o.announceLocalAgents(ctx, protocol.DiscoveryAnnounce)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.Tasks.Cleanup(maxAge)
			case <-o.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the cleanup loop and broadcasts a leave announcement for
// every local agent.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.mu.Unlock()

	close(o.stopCh)
	o.wg.Wait()
	o.announceLocalAgents(ctx, protocol.DiscoveryLeave)
}

// Shutdown is an alias for Stop.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.Stop(ctx)
}

func (o *Orchestrator) announceLocalAgents(ctx context.Context, action protocol.DiscoveryAction) {
	for _, id := range o.Router.LocalAgents() {
		payload := protocol.Payload{
			Type:           protocol.PayloadAgentDiscovery,
			AgentDiscovery: &protocol.AgentDiscoveryPayload{Action: action},
		}
		o.Router.Send(ctx, id, nil, payload, "")
	}
}

// SubmitTaskOpts configures agent selection for SubmitTask.
type SubmitTaskOpts struct {
	tasks.CreateOpts
	TargetAgentInstanceID string
	TargetRoleID          string
}

// SubmitTask creates a tracked task and attempts to assign it to a
// selected agent via the agent-selection algorithm. If no
// candidate is available the task stays pending — this is not an error.
func (o *Orchestrator) SubmitTask(ctx context.Context, opts SubmitTaskOpts) (*tasks.TrackedTask, error) {
	task, err := o.Tasks.CreateTask(opts.CreateOpts)
	if err != nil {
		return nil, err
	}

	candidate, ok := o.selectAgent(opts.TargetAgentInstanceID, opts.TargetRoleID)
	if !ok {
		return task, nil
	}

	o.Tasks.AssignTask(task.TaskID, candidate.AgentInstanceID)
	task.Status = tasks.StatusAssigned
	task.AssignedTo = candidate.AgentInstanceID

	payload := protocol.Payload{
		Type: protocol.PayloadTaskAssign,
		TaskAssign: &protocol.TaskAssignPayload{
			TaskID:         task.TaskID,
			Task:           task.Task,
			WorkflowStepID: task.WorkflowStepID,
			WorkflowPlanID: task.WorkflowPlanID,
			Priority:       task.Priority,
		},
	}
	o.Router.Send(ctx, o.Identity(), &candidate, payload, task.CorrelationID)
	return task, nil
}

// selectAgent implements the selection algorithm: load ascending, then
// role priority descending.
func (o *Orchestrator) selectAgent(targetAgentInstanceID, targetRoleID string) (protocol.Identity, bool) {
	local := o.Router.LocalAgents()

	if targetAgentInstanceID != "" {
		for _, id := range local {
			if id.AgentInstanceID == targetAgentInstanceID {
				return id, true
			}
		}
		return protocol.Identity{}, false
	}

	candidates := local
	if targetRoleID != "" {
		allowed := make(map[string]struct{})
		for _, a := range o.Roles.GetAgentsWithRole(targetRoleID) {
			allowed[a.AgentInstanceID] = struct{}{}
		}
		filtered := make([]protocol.Identity, 0, len(candidates))
		for _, id := range candidates {
			if _, ok := allowed[id.AgentInstanceID]; ok {
				filtered = append(filtered, id)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return protocol.Identity{}, false
	}

	type scored struct {
		identity protocol.Identity
		load     float64
		priority int
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		load := o.latestLoad(id.AgentInstanceID)
		priority := 50
		if assignment, ok := o.Roles.GetAssignment(id.AgentInstanceID); ok {
			priority = assignment.Role.EffectivePriority()
		}
		scoredCandidates = append(scoredCandidates, scored{identity: id, load: load, priority: priority})
	}

	sort.Slice(scoredCandidates, func(i, j int) bool {
		if scoredCandidates[i].load != scoredCandidates[j].load {
			return scoredCandidates[i].load < scoredCandidates[j].load
		}
		return scoredCandidates[i].priority > scoredCandidates[j].priority
	})

	return scoredCandidates[0].identity, true
}

func (o *Orchestrator) latestLoad(agentInstanceID string) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if hb, ok := o.heartbeats[agentInstanceID]; ok {
		return hb.Payload.Load
	}
	return 0
}

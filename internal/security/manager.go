package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// Manager is the Security Manager component: policy store, rate limiter,
// and audit log. AuthorizeMessage gates a single message against them;
// the Router does not call it, so messages routed through the core are
// delivered without this check.
type Manager struct {
	mu       sync.RWMutex
	policies map[string]Policy
	secret   []byte
	limiter  *rateLimiter
	audit    *auditLog
	now      func() time.Time
}

// NewManager creates a Manager. If secret is nil, 32 random bytes are
// generated.
func NewManager(secret []byte) *Manager {
	now := time.Now
	if secret == nil {
		secret = randomSecret()
	}
	return &Manager{
		policies: make(map[string]Policy),
		secret:   secret,
		limiter:  newRateLimiter(now),
		audit:    newAuditLog(now),
		now:      now,
	}
}

// SetPolicy upserts the policy for an agent.
func (m *Manager) SetPolicy(policy Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.AgentID] = policy
}

// RemovePolicy deletes an agent's policy, reverting it to defaults.
func (m *Manager) RemovePolicy(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, agentID)
}

// GetPolicy returns the agent's policy, or documented defaults if absent.
func (m *Manager) GetPolicy(agentID string) Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.policies[agentID]; ok {
		return p
	}
	return defaultPolicy(agentID)
}

// HasPermission reports whether agentID's policy grants perm, logging an
// audit entry regardless of outcome.
func (m *Manager) HasPermission(agentID string, perm Permission) bool {
	allowed := m.GetPolicy(agentID).hasPermission(perm)
	m.audit.record(AuditEntry{
		AgentID: agentID,
		Action:  "permission.check:" + string(perm),
		Allowed: allowed,
	})
	return allowed
}

// CheckRateLimit enforces the sliding 60s window per agent, logging a
// denial with the observed count/limit.
func (m *Manager) CheckRateLimit(agentID string) bool {
	policy := m.GetPolicy(agentID)
	allowed, count := m.limiter.allow(agentID, policy.MaxMessagesPerMinute)
	if !allowed {
		m.audit.record(AuditEntry{
			AgentID: agentID,
			Action:  "rate-limit.exceeded",
			Allowed: false,
			Detail:  fmt.Sprintf("count=%d limit=%d", count, policy.MaxMessagesPerMinute),
		})
	}
	return allowed
}

// SignMessage HMACs {messageId, payload} with the manager's shared secret.
func (m *Manager) SignMessage(env protocol.Envelope, payload protocol.Payload) (string, error) {
	return SignMessage(m.secret, env, payload)
}

// VerifySignature checks env.Signature against the manager's secret.
func (m *Manager) VerifySignature(env protocol.Envelope, payload protocol.Payload) bool {
	return VerifySignature(m.secret, env, payload)
}

// GenerateChallenge returns a fresh security.challenge payload.
func (m *Manager) GenerateChallenge() protocol.Payload {
	return protocol.Payload{
		Type: protocol.PayloadSecurityChallenge,
		SecurityChallenge: &protocol.SecurityChallengePayload{
			Nonce:     GenerateNonce(32),
			Algorithm: "ed25519",
		},
	}
}

// AuthorizeResult is the outcome of AuthorizeMessage.
type AuthorizeResult struct {
	Allowed bool
	Reason  string
}

// AuthorizeMessage gates an inbound message in order: rate limit,
// cross-gateway policy, signature (if present), then permission.
func (m *Manager) AuthorizeMessage(msg protocol.MultiAgentMessage) AuthorizeResult {
	from := msg.Envelope.From
	policy := m.GetPolicy(from.AgentInstanceID)

	if !m.CheckRateLimit(from.AgentInstanceID) {
		return AuthorizeResult{Allowed: false, Reason: "rate limit exceeded"}
	}

	if msg.Envelope.To != nil && msg.Envelope.To.GatewayID != from.GatewayID && !policy.AllowCrossGateway {
		return AuthorizeResult{Allowed: false, Reason: "cross-gateway delivery not permitted"}
	}

	if msg.Envelope.Signature != "" {
		if !m.VerifySignature(msg.Envelope, msg.Payload) {
			return AuthorizeResult{Allowed: false, Reason: "signature verification failed"}
		}
	}

	if required := msg.Payload.Type.RequiredPermission(); required != "" {
		if !m.HasPermission(from.AgentInstanceID, Permission(required)) {
			return AuthorizeResult{Allowed: false, Reason: "missing permission " + required}
		}
	}

	return AuthorizeResult{Allowed: true}
}

// GetAuditLog returns up to limit of the most recent audit entries.
func (m *Manager) GetAuditLog(limit int) []AuditEntry {
	if limit <= 0 {
		limit = 100
	}
	return m.audit.recent(limit)
}

// GetAgentAuditLog returns up to limit of the most recent audit entries
// for a specific agent.
func (m *Manager) GetAgentAuditLog(agentID string, limit int) []AuditEntry {
	if limit <= 0 {
		limit = 50
	}
	return m.audit.recentForAgent(agentID, limit)
}

// ExportPolicies returns a deep-copied snapshot of every configured
// policy, for persistence by an external collaborator.
func (m *Manager) ExportPolicies() []Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Policy, 0, len(m.policies))
	for _, p := range m.policies {
		p.Permissions = append(p.Permissions[:0:0], p.Permissions...)
		p.NetworkAllowlist = append(p.NetworkAllowlist[:0:0], p.NetworkAllowlist...)
		out = append(out, p)
	}
	return out
}

// ImportPolicies replaces the policy store with policies, a total
// replace.
func (m *Manager) ImportPolicies(policies []Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = make(map[string]Policy, len(policies))
	for _, p := range policies {
		m.policies[p.AgentID] = p
	}
}

// Package gatewayhttp exposes the coordination core's multiAgent.* RPC
// surface over HTTP, mounted with gorilla/mux. Handlers here do nothing
// but parse/validate a request, call the matching Orchestrator method,
// and marshal the result — no business logic lives here.
package gatewayhttp

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/roles"
	"github.com/cliaimonitor/agentmesh/internal/security"
)

// Handler serves the multiAgent.* RPC surface for a single Orchestrator.
type Handler struct {
	orc *orchestrator.Orchestrator
}

// NewHandler wraps orc.
func NewHandler(orc *orchestrator.Orchestrator) *Handler {
	return &Handler{orc: orc}
}

// RegisterRoutes mounts the RPC surface and the checkpoint export
// endpoint on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/rpc", h.handleRPC).Methods("POST")
	r.HandleFunc("/export", h.handleExport).Methods("GET")
}

var methodTable = map[string]func(*Handler, json.RawMessage) (any, error){
	"multiAgent.roles.list":         (*Handler).rolesList,
	"multiAgent.roles.assign":       (*Handler).rolesAssign,
	"multiAgent.roles.unassign":     (*Handler).rolesUnassign,
	"multiAgent.tasks.submit":       (*Handler).tasksSubmit,
	"multiAgent.tasks.status":       (*Handler).tasksStatus,
	"multiAgent.tasks.cancel":       (*Handler).tasksCancel,
	"multiAgent.tasks.summary":      (*Handler).tasksSummary,
	"multiAgent.agents.register":    (*Handler).agentsRegister,
	"multiAgent.agents.unregister":  (*Handler).agentsUnregister,
	"multiAgent.agents.list":        (*Handler).agentsList,
	"multiAgent.security.audit":     (*Handler).securityAudit,
	"multiAgent.security.policy.set": (*Handler).securityPolicySet,
	"multiAgent.work.progress":      (*Handler).workProgress,
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errorResponse(nil, "malformed request body: "+err.Error()))
		return
	}

	fn, ok := methodTable[req.Method]
	if !ok {
		writeJSON(w, errorResponse(req.ID, "unknown method: "+req.Method))
		return
	}

	result, err := fn(h, req.Params)
	if err != nil {
		log.Printf("[GATEWAYHTTP] %s failed: %v", req.Method, err)
		writeJSON(w, errorResponse(req.ID, err.Error()))
		return
	}
	writeJSON(w, resultResponse(req.ID, result))
}

type exportResponse struct {
	State    roles.State       `json:"state"`
	Policies []security.Policy `json:"policies"`
}

// handleExport returns a deep-copied snapshot of roles, assignments and
// policies for an external collaborator to persist, e.g. to a file path
// given on its own command line.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, exportResponse{
		State:    h.orc.Roles.ExportState(),
		Policies: h.orc.Security.ExportPolicies(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[GATEWAYHTTP] failed to encode response: %v", err)
	}
}

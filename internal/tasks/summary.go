package tasks

import "time"

// Summary reports counts per status plus derived timing statistics.
type Summary struct {
	CountsByStatus    map[Status]int `json:"countsByStatus"`
	AverageDurationMs float64        `json:"averageDurationMs"`
	AtRiskCount       int            `json:"atRiskCount"`
	TotalTasks        int            `json:"totalTasks"`
}

// atRiskThreshold is the remaining-time fraction below which a
// non-terminal task with a deadline is considered at risk.
const atRiskThreshold = 0.20

// GetSummary computes per-status counts, average completed-task duration,
// and the at-risk count.
func (t *Tracker) GetSummary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	summary := Summary{CountsByStatus: make(map[Status]int)}

	var totalDuration time.Duration
	var completedWithDuration int

	for _, task := range t.byID {
		summary.TotalTasks++
		summary.CountsByStatus[task.Status]++

		if task.StartedAt != nil && task.CompletedAt != nil {
			totalDuration += task.CompletedAt.Sub(*task.StartedAt)
			completedWithDuration++
		}

		if task.Deadline != nil && !task.Status.IsTerminal() && task.Deadline.After(now) {
			total := task.Deadline.Sub(task.CreatedAt)
			if total > 0 {
				remaining := task.Deadline.Sub(now)
				if float64(remaining)/float64(total) < atRiskThreshold {
					summary.AtRiskCount++
				}
			}
		}
	}

	if completedWithDuration > 0 {
		summary.AverageDurationMs = float64(totalDuration.Milliseconds()) / float64(completedWithDuration)
	}

	return summary
}

// AgentWorkload summarizes one agent's current and historical task load.
type AgentWorkload struct {
	AgentInstanceID   string  `json:"agentInstanceId"`
	ActiveTasks       int     `json:"activeTasks"`
	CompletedTasks    int     `json:"completedTasks"`
	FailedTasks       int     `json:"failedTasks"`
	AverageDurationMs float64 `json:"averageDurationMs"`
}

// GetAgentWorkloads returns a workload entry for every agent that owns
// at least one task.
func (t *Tracker) GetAgentWorkloads() []AgentWorkload {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type accum struct {
		active, completed, failed int
		totalDuration             time.Duration
		durationSamples           int
	}
	byAgent := make(map[string]*accum)

	for _, task := range t.byID {
		if task.AssignedTo == "" {
			continue
		}
		a, ok := byAgent[task.AssignedTo]
		if !ok {
			a = &accum{}
			byAgent[task.AssignedTo] = a
		}
		switch task.Status {
		case StatusAssigned, StatusInProgress:
			a.active++
		case StatusCompleted:
			a.completed++
			if task.StartedAt != nil && task.CompletedAt != nil {
				a.totalDuration += task.CompletedAt.Sub(*task.StartedAt)
				a.durationSamples++
			}
		case StatusFailed, StatusTimeout:
			a.failed++
		}
	}

	out := make([]AgentWorkload, 0, len(byAgent))
	for agentID, a := range byAgent {
		w := AgentWorkload{
			AgentInstanceID: agentID,
			ActiveTasks:     a.active,
			CompletedTasks:  a.completed,
			FailedTasks:     a.failed,
		}
		if a.durationSamples > 0 {
			w.AverageDurationMs = float64(a.totalDuration.Milliseconds()) / float64(a.durationSamples)
		}
		out = append(out, w)
	}
	return out
}

// Report is the filtered snapshot plus summary and workloads produced by
// GenerateReport.
type Report struct {
	Tasks       []TrackedTask   `json:"tasks"`
	Summary     Summary         `json:"summary"`
	Workloads   []AgentWorkload `json:"workloads"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// ReportOpts narrows GenerateReport's task snapshot.
type ReportOpts struct {
	WorkflowPlanID string
	Since          *time.Time
}

// GenerateReport produces a filtered snapshot stamped with the current
// time, alongside the full summary and workload breakdown.
func (t *Tracker) GenerateReport(opts ReportOpts) Report {
	filtered := t.ListTasks(Filter{WorkflowPlanID: opts.WorkflowPlanID})
	if opts.Since != nil {
		kept := filtered[:0]
		for _, task := range filtered {
			if task.CreatedAt.After(*opts.Since) {
				kept = append(kept, task)
			}
		}
		filtered = kept
	}

	return Report{
		Tasks:       filtered,
		Summary:     t.GetSummary(),
		Workloads:   t.GetAgentWorkloads(),
		GeneratedAt: t.now(),
	}
}

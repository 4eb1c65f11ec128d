package orchestrator

import (
	"context"
	"time"

	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/toolreg"
	"github.com/jarvislabs/jarvis/internal/version"
)

// AgentStatus is one agent's roster entry plus its runtime counters.
type AgentStatus struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Role  string            `json:"role"`
	Model string            `json:"model"`
	Stats domain.AgentStats `json:"stats"`
}

// SystemStatus is the full platform snapshot served by the status
// surfaces.
type SystemStatus struct {
	Health        domain.Health            `json:"health"`
	Version       string                   `json:"version"`
	Initialized   bool                     `json:"initialized"`
	UptimeSeconds int64                    `json:"uptimeSeconds"`
	Sessions      int                      `json:"sessions"`
	Agents        []AgentStatus            `json:"agents"`
	Tools         *toolreg.HealthReport    `json:"tools,omitempty"`
	ToolMetrics   *toolreg.SystemMetrics   `json:"toolMetrics,omitempty"`
	Cost          costledger.GlobalSummary `json:"cost"`
	VoiceEnabled  bool                     `json:"voiceEnabled"`
	CheckedAt     time.Time                `json:"checkedAt"`
}

// Status assembles the platform snapshot. A degraded tool workbench
// degrades the overall health; an uninitialized orchestrator is
// unhealthy.
func (o *Orchestrator) Status(ctx context.Context) SystemStatus {
	o.mu.RLock()
	initialized := o.initialized
	startedAt := o.startedAt
	sessions := len(o.sessions)
	o.mu.RUnlock()

	status := SystemStatus{
		Health:       domain.HealthHealthy,
		Version:      version.Version,
		Initialized:  initialized,
		Sessions:     sessions,
		VoiceEnabled: o.voice != nil,
		CheckedAt:    time.Now(),
	}
	if !initialized {
		status.Health = domain.HealthUnhealthy
		return status
	}
	status.UptimeSeconds = int64(time.Since(startedAt).Seconds())

	if o.pool != nil {
		for _, a := range o.pool.List() {
			cfg := a.Config()
			status.Agents = append(status.Agents, AgentStatus{
				ID:    cfg.ID,
				Name:  cfg.Name,
				Role:  string(cfg.Role),
				Model: cfg.Model,
				Stats: a.Stats(),
			})
		}
	}
	if len(status.Agents) == 0 {
		status.Health = domain.HealthDegraded
	}

	if o.tools != nil {
		report := o.tools.HealthCheck(ctx)
		metrics := o.tools.Metrics()
		status.Tools = &report
		status.ToolMetrics = &metrics
		if report.Status != domain.HealthHealthy {
			status.Health = domain.HealthDegraded
		}
	}

	if o.ledger != nil {
		status.Cost = o.ledger.GetGlobalSummary()
	}

	return status
}

// SessionStatus is the platform snapshot scoped to one session: the
// shared system view plus that session's own spend and budget
// standing.
type SessionStatus struct {
	SystemStatus
	Session costledger.SessionSummary `json:"session"`
}

// SessionStatus assembles the snapshot a session's status command
// sees.
func (o *Orchestrator) SessionStatus(ctx context.Context, sessionID string) SessionStatus {
	s := SessionStatus{SystemStatus: o.Status(ctx)}
	if o.ledger != nil {
		s.Session = o.ledger.GetSessionSummary(sessionID)
	}
	return s
}

package agent

import (
	"strings"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// roleKeywords routes task text to agent roles. First match wins.
var roleKeywords = []struct {
	role     domain.AgentRole
	keywords []string
}{
	{domain.RoleSpecialist, []string{"code", "program", "script", "debug"}},
	{domain.RoleResearcher, []string{"search", "find", "lookup", "research"}},
	{domain.RoleExecutor, []string{"analyze", "data", "calculate"}},
}

// Pool holds the agent roster and routes tasks to the right agent.
type Pool struct {
	agents []*Agent
	byID   map[string]*Agent
	log    *logging.Logger
}

// NewPool builds agents from the configured roster.
func NewPool(entries []config.AgentEntry, registry *llm.Registry, tools *ToolRegistry, log *logging.Logger) *Pool {
	p := &Pool{
		byID: make(map[string]*Agent),
		log:  log.Sub("pool"),
	}
	for _, entry := range entries {
		a := NewAgent(agentConfigFromEntry(entry), registry, tools, log)
		p.agents = append(p.agents, a)
		p.byID[entry.ID] = a
	}
	p.log.Info().Int("agents", len(p.agents)).Msg("agent pool ready")
	return p
}

func agentConfigFromEntry(entry config.AgentEntry) domain.AgentConfig {
	return domain.AgentConfig{
		ID:             entry.ID,
		Name:           entry.Name,
		Role:           domain.AgentRole(entry.Role),
		Provider:       entry.Provider,
		Model:          entry.Model,
		SystemPrompt:   entry.SystemPrompt,
		Temperature:    entry.Temperature,
		MaxTokens:      entry.MaxTokens,
		TimeoutSeconds: entry.TimeoutSeconds,
		MaxRetries:     entry.MaxRetries,
		Tools:          entry.Tools,
	}
}

// Select picks the agent for a task by keyword routing. Tasks that
// match no keyword go to the first agent in the roster.
func (p *Pool) Select(task string) *Agent {
	if len(p.agents) == 0 {
		return nil
	}

	lowered := strings.ToLower(task)
	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(lowered, kw) {
				if a := p.byRole(rk.role); a != nil {
					return a
				}
			}
		}
	}
	return p.agents[0]
}

// byRole returns the first agent with the given role.
func (p *Pool) byRole(role domain.AgentRole) *Agent {
	for _, a := range p.agents {
		if a.cfg.Role == role {
			return a
		}
	}
	return nil
}

// Get returns an agent by ID.
func (p *Pool) Get(id string) (*Agent, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// List returns all agents in roster order.
func (p *Pool) List() []*Agent {
	return p.agents
}

// Stats returns runtime counters for every agent, keyed by agent ID.
func (p *Pool) Stats() map[string]domain.AgentStats {
	out := make(map[string]domain.AgentStats, len(p.agents))
	for _, a := range p.agents {
		out[a.cfg.ID] = a.Stats()
	}
	return out
}

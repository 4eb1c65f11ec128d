package domain

// AgentRole tags a worker's function within the pool.
type AgentRole string

const (
	RoleManager    AgentRole = "manager"
	RoleSpecialist AgentRole = "specialist"
	RoleExecutor   AgentRole = "executor"
	RoleResearcher AgentRole = "researcher"
	RoleCritic     AgentRole = "critic"
)

// AgentConfig is the static definition of one LLM-backed worker.
// Immutable after construction.
type AgentConfig struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           AgentRole `json:"role"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	SystemPrompt   string    `json:"systemPrompt,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxTokens      int       `json:"maxTokens"`
	TimeoutSeconds int       `json:"timeoutSeconds"`
	MaxRetries     int       `json:"maxRetries"`
	Tools          []string  `json:"tools,omitempty"`
}

// AgentStats is the mutable per-agent counter set. Owned exclusively by
// its agent; snapshots are taken for status queries.
type AgentStats struct {
	TasksCompleted int     `json:"tasksCompleted"`
	TasksFailed    int     `json:"tasksFailed"`
	TotalTokens    int     `json:"totalTokens"`
	TotalCost      Money   `json:"totalCost"`
	AvgResponseMs  float64 `json:"avgResponseMs"`
	CurrentTask    string  `json:"currentTask,omitempty"`
	LastError      string  `json:"lastError,omitempty"`
}

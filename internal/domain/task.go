package domain

// TaskResult is the outcome of one agent turn. Failures are carried in
// Error with Success false; turns never surface as panics or raw errors
// above the agent boundary.
type TaskResult struct {
	TaskID       string `json:"taskId"`
	Success      bool   `json:"success"`
	Result       string `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
	AgentID      string `json:"agentId,omitempty"`
	AgentName    string `json:"agentName,omitempty"`
	Model        string `json:"model,omitempty"`
	TokensUsed   int    `json:"tokensUsed"`
	Cost         Money  `json:"cost"`
	ProcessingMs int64  `json:"processingMs"`
}

// Health is the tri-state status a component reports; partial outages
// are distinguishable from total ones.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

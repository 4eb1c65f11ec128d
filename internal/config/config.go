package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

func floatPtr(v float64) *float64 { return &v }

// Defaults returns a Config with sensible defaults applied, including the
// stock four-agent pool.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18900,
			Bind: "loopback",
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderEntry{
				BaseURL: "https://openrouter.ai/api/v1",
				APIKey:  "${OPENROUTER_API_KEY}",
			},
			Ollama: ProviderEntry{
				BaseURL: "http://localhost:11434",
			},
		},
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				MaxTokens:      2048,
				Temperature:    floatPtr(0.7),
				TimeoutSeconds: 120,
				MaxRetries:     2,
			},
			List: DefaultAgents(),
		},
		Budget: BudgetConfig{
			Scope:        "session",
			DefaultLimit: 100.0,
			Thresholds:   []float64{0.5, 0.8, 0.9, 1.0},
			MaxRecords:   10000,
		},
		Tools: ToolsConfig{
			SandboxMode:           "subprocess",
			SandboxTimeoutSeconds: 60,
			SafetyThreshold:       50,
			AutoInstall: []string{
				"web-search", "file-operations", "calculator",
				"weather", "email", "calendar",
			},
		},
		Retrieval: RetrievalConfig{
			Enabled:        true,
			Limit:          3,
			ScoreThreshold: 0.7,
		},
		Voice: VoiceConfig{
			DefaultVoice: "default",
			Speed:        1.0,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// DefaultAgents returns the stock worker pool: a reasoning specialist and a
// researcher on hosted models, plus two local executors.
func DefaultAgents() []AgentEntry {
	return []AgentEntry{
		{
			ID:           "agent1_openrouter_gpt4o",
			Name:         "Reasoning Specialist",
			Role:         "specialist",
			Provider:     "openrouter",
			Model:        "gpt-4o",
			SystemPrompt: "You are a careful reasoning assistant. Think through problems step by step and show working code when asked.",
		},
		{
			ID:           "agent2_ollama_gemma2_7b",
			Name:         "Local Executor",
			Role:         "executor",
			Provider:     "ollama",
			Model:        "gemma2:7b",
			SystemPrompt: "You are a fast local assistant for analysis and calculation tasks. Be concise.",
		},
		{
			ID:           "agent3_openrouter_gemini25",
			Name:         "Researcher",
			Role:         "researcher",
			Provider:     "openrouter",
			Model:        "gemini-2.5-flash",
			SystemPrompt: "You are a research assistant. Gather, compare, and cite relevant information.",
		},
		{
			ID:           "agent4_ollama_llama32_8b",
			Name:         "Critic",
			Role:         "critic",
			Provider:     "ollama",
			Model:        "llama3.2:8b",
			SystemPrompt: "You review answers for mistakes and missing considerations. Point out concrete problems.",
		},
	}
}

package config

// Config is the root configuration for Jarvis.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Agents    AgentsConfig    `yaml:"agents,omitempty"`
	Budget    BudgetConfig    `yaml:"budget,omitempty"`
	Tools     ToolsConfig     `yaml:"tools,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Voice     VoiceConfig     `yaml:"voice,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// GatewayConfig controls the session gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures bearer-token authentication. An empty token
// disables auth (local-only deployments).
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// ProvidersConfig holds model provider endpoints and credentials.
type ProvidersConfig struct {
	OpenRouter ProviderEntry `yaml:"openrouter,omitempty"`
	Ollama     ProviderEntry `yaml:"ollama,omitempty"`
}

// ProviderEntry defines one completion provider endpoint.
type ProviderEntry struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// AgentsConfig defines agent defaults and the worker list.
type AgentsConfig struct {
	Defaults AgentDefaults `yaml:"defaults,omitempty"`
	List     []AgentEntry  `yaml:"list,omitempty"`
}

// AgentDefaults defines settings inherited by agents that leave them unset.
type AgentDefaults struct {
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	MaxRetries     int      `yaml:"maxRetries,omitempty"`
}

// AgentEntry defines a single LLM-backed worker.
type AgentEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name,omitempty"`
	Role           string   `yaml:"role,omitempty"` // manager | specialist | executor | researcher | critic
	Provider       string   `yaml:"provider,omitempty"`
	Model          string   `yaml:"model,omitempty"`
	SystemPrompt   string   `yaml:"systemPrompt,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	MaxRetries     int      `yaml:"maxRetries,omitempty"`
	Tools          []string `yaml:"tools,omitempty"`
}

// BudgetConfig controls cost tracking and budget alerting.
type BudgetConfig struct {
	Scope        string    `yaml:"scope,omitempty"` // "session" | "global"
	DefaultLimit float64   `yaml:"defaultLimit,omitempty"`
	Thresholds   []float64 `yaml:"thresholds,omitempty"` // ascending fractions of the limit
	MaxRecords   int       `yaml:"maxRecords,omitempty"`
}

// ToolsConfig controls the tool registry.
type ToolsConfig struct {
	Dir                   string   `yaml:"dir,omitempty"`
	CatalogURL            string   `yaml:"catalogUrl,omitempty"`
	SandboxMode           string   `yaml:"sandboxMode,omitempty"` // "subprocess" | "direct"
	SandboxTimeoutSeconds int      `yaml:"sandboxTimeoutSeconds,omitempty"`
	SafetyThreshold       int      `yaml:"safetyThreshold,omitempty"`
	AutoInstall           []string `yaml:"autoInstall,omitempty"`
}

// RetrievalConfig controls the retrieval collaborator.
type RetrievalConfig struct {
	Enabled        bool    `yaml:"enabled,omitempty"`
	ServiceURL     string  `yaml:"serviceUrl,omitempty"` // empty means local FTS fallback
	Limit          int     `yaml:"limit,omitempty"`
	ScoreThreshold float64 `yaml:"scoreThreshold,omitempty"`
}

// VoiceConfig controls the voice collaborator.
type VoiceConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ServiceURL   string  `yaml:"serviceUrl,omitempty"`
	DefaultVoice string  `yaml:"defaultVoice,omitempty"`
	Speed        float64 `yaml:"speed,omitempty"`
}

// StoreConfig controls sqlite persistence.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // empty means <home>/data/jarvis.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
	File         string `yaml:"file,omitempty"`
}

package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Providers.OpenRouter.APIKey = expandEnvVars(cfg.Providers.OpenRouter.APIKey)
	cfg.Providers.Ollama.APIKey = expandEnvVars(cfg.Providers.Ollama.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults. A config
// file that sets only a few keys still yields a fully usable Config.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18900
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Providers.OpenRouter.BaseURL == "" {
		cfg.Providers.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Providers.Ollama.BaseURL == "" {
		cfg.Providers.Ollama.BaseURL = "http://localhost:11434"
	}
	if len(cfg.Agents.List) == 0 {
		cfg.Agents.List = DefaultAgents()
	}
	if cfg.Agents.Defaults.MaxTokens == 0 {
		cfg.Agents.Defaults.MaxTokens = 2048
	}
	if cfg.Agents.Defaults.Temperature == nil {
		cfg.Agents.Defaults.Temperature = floatPtr(0.7)
	}
	if cfg.Agents.Defaults.TimeoutSeconds == 0 {
		cfg.Agents.Defaults.TimeoutSeconds = 120
	}
	if cfg.Agents.Defaults.MaxRetries == 0 {
		cfg.Agents.Defaults.MaxRetries = 2
	}
	if cfg.Budget.Scope == "" {
		cfg.Budget.Scope = "session"
	}
	if cfg.Budget.DefaultLimit == 0 {
		cfg.Budget.DefaultLimit = 100.0
	}
	if len(cfg.Budget.Thresholds) == 0 {
		cfg.Budget.Thresholds = []float64{0.5, 0.8, 0.9, 1.0}
	}
	if cfg.Budget.MaxRecords == 0 {
		cfg.Budget.MaxRecords = 10000
	}
	if cfg.Tools.SandboxMode == "" {
		cfg.Tools.SandboxMode = "subprocess"
	}
	if cfg.Tools.SandboxTimeoutSeconds == 0 {
		cfg.Tools.SandboxTimeoutSeconds = 60
	}
	if cfg.Tools.SafetyThreshold == 0 {
		cfg.Tools.SafetyThreshold = 50
	}
	if cfg.Retrieval.Limit == 0 {
		cfg.Retrieval.Limit = 3
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = 0.7
	}
	if cfg.Voice.DefaultVoice == "" {
		cfg.Voice.DefaultVoice = "default"
	}
	if cfg.Voice.Speed == 0 {
		cfg.Voice.Speed = 1.0
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads JARVIS_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JARVIS_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("JARVIS_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("JARVIS_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("JARVIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("JARVIS_BUDGET_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit > 0 {
			cfg.Budget.DefaultLimit = limit
		}
	}
	if v := os.Getenv("JARVIS_OLLAMA_URL"); v != "" {
		cfg.Providers.Ollama.BaseURL = v
	}
}

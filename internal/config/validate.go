package config

import (
	"fmt"
	"slices"
	"sort"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var validRoles = []string{"manager", "specialist", "executor", "researcher", "critic"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind: custom",
		})
	}

	seen := map[string]bool{}
	for i, a := range cfg.Agents.List {
		prefix := fmt.Sprintf("agents.list[%d]", i)
		if a.ID == "" {
			issues = append(issues, ValidationIssue{Path: prefix + ".id", Message: "id is required"})
		} else if seen[a.ID] {
			issues = append(issues, ValidationIssue{Path: prefix + ".id", Message: fmt.Sprintf("duplicate agent id %q", a.ID)})
		}
		seen[a.ID] = true
		if a.Role != "" && !slices.Contains(validRoles, a.Role) {
			issues = append(issues, ValidationIssue{
				Path:    prefix + ".role",
				Message: fmt.Sprintf("must be one of %v, got %q", validRoles, a.Role),
			})
		}
		validProviders := []string{"", "openrouter", "ollama"}
		if !slices.Contains(validProviders, a.Provider) {
			issues = append(issues, ValidationIssue{
				Path:    prefix + ".provider",
				Message: fmt.Sprintf("must be one of [openrouter ollama], got %q", a.Provider),
			})
		}
	}

	validScopes := []string{"session", "global"}
	if cfg.Budget.Scope != "" && !slices.Contains(validScopes, cfg.Budget.Scope) {
		issues = append(issues, ValidationIssue{
			Path:    "budget.scope",
			Message: fmt.Sprintf("must be one of %v, got %q", validScopes, cfg.Budget.Scope),
		})
	}
	if cfg.Budget.DefaultLimit < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "budget.defaultLimit",
			Message: fmt.Sprintf("must be non-negative, got %v", cfg.Budget.DefaultLimit),
		})
	}
	if len(cfg.Budget.Thresholds) > 0 {
		if !sort.Float64sAreSorted(cfg.Budget.Thresholds) {
			issues = append(issues, ValidationIssue{
				Path:    "budget.thresholds",
				Message: "thresholds must be in ascending order",
			})
		}
		for _, t := range cfg.Budget.Thresholds {
			if t <= 0 {
				issues = append(issues, ValidationIssue{
					Path:    "budget.thresholds",
					Message: fmt.Sprintf("thresholds must be positive fractions, got %v", t),
				})
				break
			}
		}
	}

	validSandboxModes := []string{"subprocess", "direct"}
	if cfg.Tools.SandboxMode != "" && !slices.Contains(validSandboxModes, cfg.Tools.SandboxMode) {
		issues = append(issues, ValidationIssue{
			Path:    "tools.sandboxMode",
			Message: fmt.Sprintf("must be one of %v, got %q", validSandboxModes, cfg.Tools.SandboxMode),
		})
	}
	if cfg.Tools.SafetyThreshold < 0 || cfg.Tools.SafetyThreshold > 100 {
		issues = append(issues, ValidationIssue{
			Path:    "tools.safetyThreshold",
			Message: fmt.Sprintf("must be 0-100, got %d", cfg.Tools.SafetyThreshold),
		})
	}

	if cfg.Retrieval.ScoreThreshold < 0 || cfg.Retrieval.ScoreThreshold > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "retrieval.scoreThreshold",
			Message: fmt.Sprintf("must be 0-1, got %v", cfg.Retrieval.ScoreThreshold),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

// Package toolreg manages controlled installation and sandboxed execution
// of catalog tools, gated by an automated safety score.
package toolreg

import (
	"encoding/json"
	"time"
)

// ToolStatus is the registry state of one tool.
type ToolStatus string

const (
	StatusInstalling ToolStatus = "installing"
	StatusInstalled  ToolStatus = "installed"
	StatusError      ToolStatus = "error"
	StatusDisabled   ToolStatus = "disabled"
)

// ToolDefinition is catalog-side tool metadata, read-only to us.
type ToolDefinition struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Author        string   `json:"author,omitempty"`
	License       string   `json:"license,omitempty"`
	Functions     []string `json:"functions,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	SafetyLevel   string   `json:"safetyLevel,omitempty"`
	SafetyScore   int      `json:"safetyScore,omitempty"`
	DownloadCount int      `json:"downloadCount,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// ToolSnapshot is the persistable registry entry for one tool,
// including lifetime execution counters.
type ToolSnapshot struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Status       ToolStatus `json:"status"`
	InstallPath  string     `json:"installPath"`
	SafetyScore  int        `json:"safetyScore"`
	UsageCount   int        `json:"usageCount"`
	SuccessCount int        `json:"successCount"`
	FailureCount int        `json:"failureCount"`
	TotalExecMs  int64      `json:"totalExecMs"`
	InstalledAt  time.Time  `json:"installedAt"`
}

// AvgExecMs derives the running average execution time.
func (s ToolSnapshot) AvgExecMs() float64 {
	if s.UsageCount == 0 {
		return 0
	}
	return float64(s.TotalExecMs) / float64(s.UsageCount)
}

// SuccessRate derives the fraction of attempts that succeeded.
func (s ToolSnapshot) SuccessRate() float64 {
	attempts := s.SuccessCount + s.FailureCount
	if attempts == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(attempts)
}

// InstallResult reports one installation attempt. Failures are carried
// in Message with Success false; install never raises past this
// boundary.
type InstallResult struct {
	ToolName    string     `json:"toolName"`
	Version     string     `json:"version"`
	Status      ToolStatus `json:"status"`
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	SafetyScore int        `json:"safetyScore"`
	Warnings    []string   `json:"warnings,omitempty"`
	InstallMs   int64      `json:"installMs"`
}

// ExecutionResult reports one tool function invocation.
type ExecutionResult struct {
	ExecutionID string          `json:"executionId"`
	ToolName    string          `json:"toolName"`
	Function    string          `json:"function"`
	Success     bool            `json:"success"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorCode   string          `json:"errorCode,omitempty"`
	ExecutionMs int64           `json:"executionMs"`
}

// RegistryStore persists registry entries across restarts. All methods
// are best-effort; failures are logged by the registry and ignored.
type RegistryStore interface {
	SaveTool(snap ToolSnapshot) error
	DeleteTool(name string) error
	LoadTools() ([]ToolSnapshot, error)
}

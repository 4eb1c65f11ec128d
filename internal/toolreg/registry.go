package toolreg

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// PopularTools is the bootstrap set installed on startup when
// auto-install is enabled and the config does not override it.
var PopularTools = []string{
	"web-search",
	"file-operations",
	"calculator",
	"weather",
	"email",
	"calendar",
}

// Execution error codes surfaced to clients.
const (
	ErrCodeNotInstalled = "TOOL_NOT_INSTALLED"
	ErrCodeTimeout      = "EXECUTION_TIMEOUT"
	ErrCodeFailed       = "EXECUTION_FAILED"
)

// Options configures a Registry.
type Options struct {
	// Dir is where tool packages are extracted, one subdirectory per
	// tool.
	Dir      string
	Catalog  Catalog
	Scanner  *Scanner
	Executor Executor
	// Store persists registry entries; nil disables persistence.
	Store RegistryStore
	Log   *logging.Logger
}

// Registry tracks installed tools and mediates their lifecycle:
// catalog lookup, safety scan, extraction, execution, removal. All
// methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	tools map[string]*ToolSnapshot

	dir      string
	catalog  Catalog
	scanner  *Scanner
	executor Executor
	store    RegistryStore
	log      *logging.Logger
}

// NewRegistry creates a registry and loads any persisted entries.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		tools:    make(map[string]*ToolSnapshot),
		dir:      opts.Dir,
		catalog:  opts.Catalog,
		scanner:  opts.Scanner,
		executor: opts.Executor,
		store:    opts.Store,
		log:      opts.Log.Sub("toolreg"),
	}
	if r.scanner == nil {
		r.scanner = NewScanner(DefaultSafetyThreshold)
	}
	if r.executor == nil {
		r.executor = NewSubprocessExecutor(DefaultExecTimeout)
	}
	r.loadPersisted()
	return r
}

func (r *Registry) loadPersisted() {
	if r.store == nil {
		return
	}
	snaps, err := r.store.LoadTools()
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to load persisted tools")
		return
	}
	for i := range snaps {
		snap := snaps[i]
		r.tools[snap.Name] = &snap
	}
	if len(snaps) > 0 {
		r.log.Info().Int("count", len(snaps)).Msg("Restored tool registry")
	}
}

// Install resolves, scans, and extracts one tool from the catalog.
// Every failure mode comes back as an unsuccessful InstallResult; no
// registry entry is created for a tool that did not finish installing.
func (r *Registry) Install(ctx context.Context, name, version string) InstallResult {
	started := time.Now()
	fail := func(msg string, score int, warnings []string) InstallResult {
		r.log.Warn().Str("tool", name).Str("reason", msg).Msg("Tool install failed")
		return InstallResult{
			ToolName:    name,
			Version:     version,
			Status:      StatusError,
			Success:     false,
			Message:     msg,
			SafetyScore: score,
			Warnings:    warnings,
			InstallMs:   time.Since(started).Milliseconds(),
		}
	}

	if r.catalog == nil {
		return fail("no tool catalog configured", 0, nil)
	}

	def, err := r.catalog.GetInfo(ctx, name)
	if err != nil {
		return fail(fmt.Sprintf("catalog lookup failed: %v", err), 0, nil)
	}
	if def == nil {
		return fail(fmt.Sprintf("tool %q not found in catalog", name), 0, nil)
	}
	if version == "" {
		version = def.Version
	}

	payload, err := r.catalog.Download(ctx, name, version)
	if err != nil {
		return fail(fmt.Sprintf("download failed: %v", err), 0, nil)
	}

	report := r.scanner.Scan(payload)
	if !r.scanner.Accepts(report.Score) {
		return fail(
			fmt.Sprintf("safety scan rejected package: score %d below threshold %d", report.Score, r.scanner.Threshold()),
			report.Score, report.Warnings,
		)
	}

	installPath := filepath.Join(r.dir, name)
	if err := extractPackage(payload, installPath); err != nil {
		return fail(fmt.Sprintf("extraction failed: %v", err), report.Score, report.Warnings)
	}

	snap := &ToolSnapshot{
		Name:        name,
		Version:     version,
		Status:      StatusInstalled,
		InstallPath: installPath,
		SafetyScore: report.Score,
		InstalledAt: time.Now(),
	}

	r.mu.Lock()
	r.tools[name] = snap
	r.persistLocked(snap)
	r.mu.Unlock()

	r.log.Info().
		Str("tool", name).
		Str("version", version).
		Int("safetyScore", report.Score).
		Msg("Tool installed")

	return InstallResult{
		ToolName:    name,
		Version:     version,
		Status:      StatusInstalled,
		Success:     true,
		Message:     "installed",
		SafetyScore: report.Score,
		Warnings:    report.Warnings,
		InstallMs:   time.Since(started).Milliseconds(),
	}
}

// Execute invokes one function of an installed tool and records the
// outcome in the tool's usage counters.
func (r *Registry) Execute(ctx context.Context, name, function string, params map[string]any) ExecutionResult {
	execID := uuid.New().String()
	started := time.Now()

	r.mu.Lock()
	snap, ok := r.tools[name]
	var installPath string
	if ok && snap.Status == StatusInstalled {
		installPath = snap.InstallPath
	}
	r.mu.Unlock()

	if installPath == "" {
		return ExecutionResult{
			ExecutionID: execID,
			ToolName:    name,
			Function:    function,
			Success:     false,
			Error:       fmt.Sprintf("tool %q is not installed", name),
			ErrorCode:   ErrCodeNotInstalled,
		}
	}

	out, err := r.executor.Execute(ctx, installPath, function, params)
	elapsed := time.Since(started).Milliseconds()
	r.recordExecution(name, err == nil, elapsed)

	if err != nil {
		code := ErrCodeFailed
		if errors.Is(err, ErrExecTimeout) {
			code = ErrCodeTimeout
		}
		return ExecutionResult{
			ExecutionID: execID,
			ToolName:    name,
			Function:    function,
			Success:     false,
			Error:       err.Error(),
			ErrorCode:   code,
			ExecutionMs: elapsed,
		}
	}

	return ExecutionResult{
		ExecutionID: execID,
		ToolName:    name,
		Function:    function,
		Success:     true,
		Result:      out,
		ExecutionMs: elapsed,
	}
}

func (r *Registry) recordExecution(name string, success bool, elapsedMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.tools[name]
	if !ok {
		return
	}
	snap.UsageCount++
	snap.TotalExecMs += elapsedMs
	if success {
		snap.SuccessCount++
	} else {
		snap.FailureCount++
	}
	r.persistLocked(snap)
}

// Uninstall removes a tool and its files. Removing an absent tool is
// not an error; it reports false.
func (r *Registry) Uninstall(name string) bool {
	r.mu.Lock()
	snap, ok := r.tools[name]
	if ok {
		delete(r.tools, name)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	if snap.InstallPath != "" {
		if err := os.RemoveAll(snap.InstallPath); err != nil {
			r.log.Warn().Err(err).Str("tool", name).Msg("Failed to remove tool files")
		}
	}
	if r.store != nil {
		if err := r.store.DeleteTool(name); err != nil {
			r.log.Warn().Err(err).Str("tool", name).Msg("Failed to delete persisted tool")
		}
	}

	r.log.Info().Str("tool", name).Msg("Tool uninstalled")
	return true
}

// Get returns a copy of one registry entry.
func (r *Registry) Get(name string) (ToolSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.tools[name]
	if !ok {
		return ToolSnapshot{}, false
	}
	return *snap, true
}

// List returns copies of all registry entries sorted by name.
func (r *Registry) List() []ToolSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ToolSnapshot, 0, len(r.tools))
	for _, snap := range r.tools {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Bootstrap installs the given tools, skipping ones already installed.
// Individual failures are logged and skipped; it returns how many
// installs succeeded.
func (r *Registry) Bootstrap(ctx context.Context, names []string) int {
	if len(names) == 0 {
		names = PopularTools
	}

	installed := 0
	for _, name := range names {
		if _, ok := r.Get(name); ok {
			continue
		}
		res := r.Install(ctx, name, "")
		if res.Success {
			installed++
		} else {
			r.log.Warn().Str("tool", name).Str("reason", res.Message).Msg("Skipping bootstrap tool")
		}
	}
	if installed > 0 {
		r.log.Info().Int("count", installed).Msg("Bootstrapped tools")
	}
	return installed
}

// HealthReport summarizes registry health.
type HealthReport struct {
	Status           domain.Health `json:"status"`
	InstalledTools   int           `json:"installedTools"`
	CatalogReachable bool          `json:"catalogReachable"`
	CheckedAt        time.Time     `json:"checkedAt"`
}

// HealthCheck probes the catalog and reports registry state. An
// unreachable catalog degrades health but installed tools keep
// working. Running without a catalog is a valid configuration, not a
// degradation; installs are simply unavailable.
func (r *Registry) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:         domain.HealthHealthy,
		InstalledTools: len(r.List()),
		CheckedAt:      time.Now(),
	}

	if r.catalog != nil {
		_, err := r.catalog.Search(ctx, "", 1)
		report.CatalogReachable = err == nil
		if err != nil {
			report.Status = domain.HealthDegraded
		}
	}
	return report
}

// ToolUsage is one entry in the most-used ranking.
type ToolUsage struct {
	Name       string `json:"name"`
	UsageCount int    `json:"usageCount"`
}

// SystemMetrics aggregates execution counters across all tools.
type SystemMetrics struct {
	TotalTools      int         `json:"totalTools"`
	TotalExecutions int         `json:"totalExecutions"`
	TotalSuccesses  int         `json:"totalSuccesses"`
	TotalFailures   int         `json:"totalFailures"`
	AvgExecMs       float64     `json:"avgExecMs"`
	MostUsedTools   []ToolUsage `json:"mostUsedTools"`
}

// Metrics returns aggregate usage counters and the five most used
// tools.
func (r *Registry) Metrics() SystemMetrics {
	tools := r.List()

	m := SystemMetrics{TotalTools: len(tools)}
	var totalMs int64
	for _, snap := range tools {
		m.TotalExecutions += snap.UsageCount
		m.TotalSuccesses += snap.SuccessCount
		m.TotalFailures += snap.FailureCount
		totalMs += snap.TotalExecMs
	}
	if m.TotalExecutions > 0 {
		m.AvgExecMs = float64(totalMs) / float64(m.TotalExecutions)
	}

	sort.Slice(tools, func(i, j int) bool { return tools[i].UsageCount > tools[j].UsageCount })
	for i, snap := range tools {
		if i >= 5 || snap.UsageCount == 0 {
			break
		}
		m.MostUsedTools = append(m.MostUsedTools, ToolUsage{Name: snap.Name, UsageCount: snap.UsageCount})
	}
	return m
}

// persistLocked saves one entry; callers hold the mutex. Persistence
// failures are logged and otherwise ignored.
func (r *Registry) persistLocked(snap *ToolSnapshot) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveTool(*snap); err != nil {
		r.log.Warn().Err(err).Str("tool", snap.Name).Msg("Failed to persist tool")
	}
}

// extractPackage writes a downloaded payload into the install
// directory. Zip archives are unpacked; anything else is treated as a
// single-file script package.
func extractPackage(payload []byte, installPath string) error {
	if err := os.MkdirAll(installPath, 0o755); err != nil {
		return err
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		// Not an archive; install as a bare script.
		return os.WriteFile(filepath.Join(installPath, "main.py"), payload, 0o644)
	}

	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("archive entry escapes install dir: %s", f.Name)
		}
		dest := filepath.Join(installPath, name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, f.Mode().Perm()|0o600); err != nil {
			return err
		}
	}
	return nil
}

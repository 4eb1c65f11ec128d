package toolreg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExecTimeout bounds a single tool function invocation.
const DefaultExecTimeout = 60 * time.Second

// Executor runs an installed tool function and returns its raw JSON
// output.
type Executor interface {
	Execute(ctx context.Context, installPath, function string, params map[string]any) ([]byte, error)
}

// ErrExecTimeout marks an invocation killed by the sandbox deadline.
var ErrExecTimeout = errors.New("tool execution timed out")

// SubprocessExecutor runs tools as sandboxed child processes. Each
// invocation spawns the tool's entrypoint with the function name and
// parameters on argv and reads a single JSON document from stdout.
type SubprocessExecutor struct {
	timeout time.Duration
}

// NewSubprocessExecutor creates an executor with the given timeout.
// A zero timeout falls back to the default.
func NewSubprocessExecutor(timeout time.Duration) *SubprocessExecutor {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &SubprocessExecutor{timeout: timeout}
}

// Execute runs one tool function. The tool's stdout must be a JSON
// document; stderr is surfaced in the error on failure.
func (e *SubprocessExecutor) Execute(ctx context.Context, installPath, function string, params map[string]any) ([]byte, error) {
	entrypoint, args, err := resolveEntrypoint(installPath)
	if err != nil {
		return nil, err
	}

	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters: %w", err)
	}
	args = append(args, "--function", function, "--parameters", string(paramJSON))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, entrypoint, args...)
	cmd.Dir = installPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrExecTimeout
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("tool process failed: %s", msg)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, fmt.Errorf("tool produced invalid JSON output")
	}
	return out, nil
}

// resolveEntrypoint finds what to run inside an install directory.
// Script packages ship a main.py; native tools ship a main binary.
func resolveEntrypoint(installPath string) (string, []string, error) {
	script := filepath.Join(installPath, "main.py")
	if _, err := os.Stat(script); err == nil {
		return "python3", []string{script}, nil
	}

	binary := filepath.Join(installPath, "main")
	if info, err := os.Stat(binary); err == nil && info.Mode()&0111 != 0 {
		return binary, nil, nil
	}

	return "", nil, fmt.Errorf("no entrypoint found in %s", installPath)
}

package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jarvislabs/jarvis/internal/toolreg"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Execute runs the tool with the given JSON input and returns JSON output.
	Execute(ctx context.Context, input string) (string, error)
}

// ToolRegistry holds available tools. An attached workbench is
// consulted live, so tools installed after startup are visible to
// agents without re-registration.
type ToolRegistry struct {
	tools     map[string]Tool
	workbench *toolreg.Registry
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool.
func (r *ToolRegistry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// AttachWorkbench exposes the workbench's installed tools to agents.
func (r *ToolRegistry) AttachWorkbench(registry *toolreg.Registry) {
	r.workbench = registry
}

// Get returns a tool by name. Directly registered tools shadow
// workbench tools of the same name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	if t, ok := r.tools[name]; ok {
		return t, true
	}
	if r.workbench != nil {
		if snap, ok := r.workbench.Get(name); ok && snap.Status == toolreg.StatusInstalled {
			return NewWorkbenchTool(r.workbench, snap.Name, workbenchDescription(snap.Name)), true
		}
	}
	return nil, false
}

// Definitions returns LLM-ready tool definitions for all registered
// tools plus the workbench's currently installed ones.
func (r *ToolRegistry) Definitions() []ToolDef {
	defs := make([]ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	if r.workbench != nil {
		for _, snap := range r.workbench.List() {
			if snap.Status != toolreg.StatusInstalled {
				continue
			}
			if _, shadowed := r.tools[snap.Name]; shadowed {
				continue
			}
			defs = append(defs, ToolDef{
				Name:        snap.Name,
				Description: workbenchDescription(snap.Name),
				InputSchema: workbenchSchema,
			})
		}
	}
	return defs
}

func workbenchDescription(name string) string {
	return "Installed workbench tool " + name
}

// ToolDef is a serializable tool definition for passing to the LLM.
type ToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"`
}

// WorkbenchTool exposes one installed workbench tool to agents.
type WorkbenchTool struct {
	registry    *toolreg.Registry
	name        string
	description string
}

// NewWorkbenchTool wraps an installed tool from the workbench
// registry.
func NewWorkbenchTool(registry *toolreg.Registry, name, description string) *WorkbenchTool {
	return &WorkbenchTool{registry: registry, name: name, description: description}
}

const workbenchSchema = `{"type":"object","properties":{"function":{"type":"string"},"parameters":{"type":"object"}},"required":["function"]}`

func (w *WorkbenchTool) Name() string        { return w.name }
func (w *WorkbenchTool) Description() string { return w.description }
func (w *WorkbenchTool) InputSchema() string { return workbenchSchema }

type workbenchInput struct {
	Function   string         `json:"function"`
	Parameters map[string]any `json:"parameters"`
}

// Execute parses the LLM's tool input and dispatches it through the
// workbench registry.
func (w *WorkbenchTool) Execute(ctx context.Context, input string) (string, error) {
	var in workbenchInput
	if input != "" {
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", errors.New("tool input must be a JSON object with function and parameters")
		}
	}
	if in.Function == "" {
		in.Function = "run"
	}

	res := w.registry.Execute(ctx, w.name, in.Function, in.Parameters)
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return string(res.Result), nil
}

// Package agent hosts the LLM-backed workers that process tasks. Each
// agent owns a provider failover chain, a role, and a tool allowlist;
// the Pool routes tasks to agents by keyword.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/logging"
)

const defaultTimeout = 120 * time.Second

// Agent is one LLM-backed worker.
type Agent struct {
	cfg    domain.AgentConfig
	client *llm.Failover
	tools  *ToolRegistry
	log    *logging.Logger

	mu    sync.Mutex
	stats domain.AgentStats
}

// NewAgent creates an agent bound to the given provider registry.
func NewAgent(cfg domain.AgentConfig, registry *llm.Registry, tools *ToolRegistry, log *logging.Logger) *Agent {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Agent{
		cfg:    cfg,
		client: llm.NewFailover(registry, cfg.Model, nil, log),
		tools:  tools,
		log:    log.Sub("agent." + cfg.ID),
	}
}

// Config returns the agent's configuration.
func (a *Agent) Config() domain.AgentConfig { return a.cfg }

// Stats returns a copy of the agent's runtime counters.
func (a *Agent) Stats() domain.AgentStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Run processes one task. History carries earlier turns of the
// session; contextBlock is optional retrieved knowledge. A response
// containing tool calls gets the tool results and exactly one more
// model invocation before the answer is returned. The returned usage
// carries the input/output token split for cost accounting.
func (a *Agent) Run(ctx context.Context, task string, history []llm.Message, contextBlock string) (*domain.TaskResult, llm.Usage, error) {
	start := time.Now()
	taskID := uuid.New().String()

	a.setCurrentTask(task)
	defer a.setCurrentTask("")

	timeout := defaultTimeout
	if a.cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(a.cfg.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system := BuildSystemPrompt(PromptConfig{
		AgentName:    a.cfg.Name,
		AgentID:      a.cfg.ID,
		Role:         string(a.cfg.Role),
		Model:        a.cfg.Model,
		Tools:        a.allowedTools(),
		ContextBlock: contextBlock,
		ExtraPrompt:  a.cfg.SystemPrompt,
	})

	messages := append(append([]llm.Message{}, history...), llm.Message{Role: llm.RoleUser, Content: task})

	var totalUsage llm.Usage
	resp, err := a.complete(ctx, system, messages, &totalUsage)
	if err != nil {
		a.recordFailure(err)
		return nil, totalUsage, err
	}

	// One round of tool execution, then one follow-up completion.
	if calls := a.collectToolCalls(resp); len(calls) > 0 {
		a.log.Info().Int("toolCalls", len(calls)).Msg("executing tool calls")

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: formatToolResults(a.executeToolCalls(ctx, calls))},
		)

		resp, err = a.complete(ctx, system, messages, &totalUsage)
		if err != nil {
			a.recordFailure(err)
			return nil, totalUsage, err
		}
	}

	clean := stripToolCalls(resp.Content)
	elapsed := time.Since(start)
	a.recordSuccess(totalUsage, elapsed)

	a.log.Info().
		Str("taskId", taskID).
		Str("model", resp.Model).
		Int("inputTokens", totalUsage.InputTokens).
		Int("outputTokens", totalUsage.OutputTokens).
		Dur("duration", elapsed).
		Msg("task completed")

	model := resp.Model
	if model == "" {
		model = a.cfg.Model
	}

	return &domain.TaskResult{
		TaskID:       taskID,
		Success:      true,
		Result:       clean,
		AgentID:      a.cfg.ID,
		AgentName:    a.cfg.Name,
		Model:        model,
		TokensUsed:   totalUsage.InputTokens + totalUsage.OutputTokens,
		ProcessingMs: elapsed.Milliseconds(),
	}, totalUsage, nil
}

func (a *Agent) complete(ctx context.Context, system string, messages []llm.Message, usage *llm.Usage) (*llm.CompletionResponse, error) {
	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Model:       a.cfg.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM completion: %w", err)
	}
	usage.InputTokens += resp.Usage.InputTokens
	usage.OutputTokens += resp.Usage.OutputTokens
	return resp, nil
}

// allowedTools filters the registry down to the agent's allowlist. An
// empty allowlist exposes everything.
func (a *Agent) allowedTools() []ToolDef {
	defs := a.tools.Definitions()
	if len(a.cfg.Tools) == 0 {
		return defs
	}
	allowed := make(map[string]bool, len(a.cfg.Tools))
	for _, name := range a.cfg.Tools {
		allowed[name] = true
	}
	var out []ToolDef
	for _, def := range defs {
		if allowed[def.Name] {
			out = append(out, def)
		}
	}
	return out
}

func (a *Agent) setCurrentTask(task string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(task) > 80 {
		task = task[:80]
	}
	a.stats.CurrentTask = task
}

func (a *Agent) recordSuccess(usage llm.Usage, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TasksCompleted++
	a.stats.TotalTokens += usage.InputTokens + usage.OutputTokens
	n := float64(a.stats.TasksCompleted)
	a.stats.AvgResponseMs = (a.stats.AvgResponseMs*(n-1) + float64(elapsed.Milliseconds())) / n
	a.stats.LastError = ""
}

// AddCost folds ledger-attributed spend for a completed task into the
// agent's counters. Pricing lives in the ledger, so the caller passes
// the computed cost in.
func (a *Agent) AddCost(cost domain.Money) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalCost = a.stats.TotalCost.Add(cost)
}

func (a *Agent) recordFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TasksFailed++
	a.stats.LastError = err.Error()
}

// toolCall is a parsed tool invocation from the LLM response.
type toolCall struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Output string
	Err    error
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in LLM output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\n\\s*```")

// codeFenceRe matches fenced code block opening/closing markers on their own line.
var codeFenceRe = regexp.MustCompile(`(?m)^\s*` + "```" + `\w*\s*$`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// collectToolCalls merges native tool calls with ones embedded in the
// response text. Local models have no native tool calling, so the
// text form matters.
func (a *Agent) collectToolCalls(resp *llm.CompletionResponse) []toolCall {
	var calls []toolCall
	for _, tc := range resp.ToolCalls {
		calls = append(calls, toolCall{Tool: tc.Name, Input: json.RawMessage(tc.Input)})
	}
	calls = append(calls, parseToolCalls(resp.Content)...)
	return calls
}

// parseToolCalls extracts tool_call blocks from LLM response text.
func parseToolCalls(text string) []toolCall {
	matches := toolCallRe.FindAllStringSubmatch(text, -1)
	var calls []toolCall
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		var tc toolCall
		if err := json.Unmarshal([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each tool and returns results.
func (a *Agent) executeToolCalls(ctx context.Context, calls []toolCall) []toolResult {
	var results []toolResult
	for _, tc := range calls {
		tool, ok := a.tools.Get(tc.Tool)
		if !ok {
			results = append(results, toolResult{
				Tool: tc.Tool,
				Err:  fmt.Errorf("unknown tool: %s", tc.Tool),
			})
			continue
		}

		a.log.Debug().Str("tool", tc.Tool).Msg("executing tool")
		output, err := tool.Execute(ctx, string(tc.Input))
		results = append(results, toolResult{
			Tool:   tc.Tool,
			Output: output,
			Err:    err,
		})
	}
	return results
}

// formatToolResults renders tool execution results for the LLM.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool_call code blocks and stray fence markers
// from the response, leaving surrounding text.
func stripToolCalls(text string) string {
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")
	cleaned = codeFenceRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

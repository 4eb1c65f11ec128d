package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/logging"
	"github.com/jarvislabs/jarvis/internal/toolreg"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func mockRegistry(client llm.Client) *llm.Registry {
	reg := llm.NewRegistry(testLog())
	reg.Register("mock", client)
	reg.SetFallback("mock")
	return reg
}

func testAgentConfig() domain.AgentConfig {
	return domain.AgentConfig{
		ID:    "agent1",
		Name:  "Atlas",
		Role:  domain.RoleSpecialist,
		Model: "gpt-4o",
	}
}

// --- Agent run tests ---

func TestAgentRun_Success(t *testing.T) {
	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			assert.Contains(t, req.System, "Atlas")
			require.NotEmpty(t, req.Messages)
			assert.Equal(t, "write a sort function", req.Messages[len(req.Messages)-1].Content)
			return &llm.CompletionResponse{
				Content: "here is the function",
				Model:   "gpt-4o",
				Usage:   llm.Usage{InputTokens: 100, OutputTokens: 40},
			}, nil
		},
	}

	a := NewAgent(testAgentConfig(), mockRegistry(client), nil, testLog())
	res, usage, err := a.Run(context.Background(), "write a sort function", nil, "")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "here is the function", res.Result)
	assert.Equal(t, "agent1", res.AgentID)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, 140, res.TokensUsed)
	assert.Equal(t, 100, usage.InputTokens)
	assert.Equal(t, 40, usage.OutputTokens)
	assert.NotEmpty(t, res.TaskID)

	stats := a.Stats()
	assert.Equal(t, 1, stats.TasksCompleted)
	assert.Equal(t, 140, stats.TotalTokens)
	assert.Empty(t, stats.CurrentTask)
}

func TestAgentRun_TemperatureForwarded(t *testing.T) {
	client := &llm.MockClient{ProviderName: "mock"}

	cfg := testAgentConfig()
	temp := 0.2
	cfg.Temperature = &temp

	a := NewAgent(cfg, mockRegistry(client), nil, testLog())
	_, _, err := a.Run(context.Background(), "task", nil, "")
	require.NoError(t, err)

	req, ok := client.LastRequest()
	require.True(t, ok)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)

	// Unset temperature stays nil so the provider default applies.
	b := NewAgent(testAgentConfig(), mockRegistry(client), nil, testLog())
	_, _, err = b.Run(context.Background(), "task", nil, "")
	require.NoError(t, err)

	req, ok = client.LastRequest()
	require.True(t, ok)
	assert.Nil(t, req.Temperature)
}

func TestAgentRun_Failure(t *testing.T) {
	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider down")
		},
	}

	a := NewAgent(testAgentConfig(), mockRegistry(client), nil, testLog())
	_, _, err := a.Run(context.Background(), "anything", nil, "")
	require.Error(t, err)

	stats := a.Stats()
	assert.Equal(t, 1, stats.TasksFailed)
	assert.Contains(t, stats.LastError, "provider down")
}

func TestAgentRun_SingleToolReinvocation(t *testing.T) {
	var calls int32
	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				return &llm.CompletionResponse{
					Content: "```tool_call\n{\"tool\": \"echo\", \"input\": {\"function\": \"run\"}}\n```",
					Usage:   llm.Usage{InputTokens: 50, OutputTokens: 20},
				}, nil
			}
			// The follow-up turn carries the tool results.
			last := req.Messages[len(req.Messages)-1]
			assert.Contains(t, last.Content, "Tool execution results")
			return &llm.CompletionResponse{
				Content: "the tool said hello",
				Usage:   llm.Usage{InputTokens: 80, OutputTokens: 10},
			}, nil
		},
	}

	tools := NewToolRegistry()
	tools.Register(&staticTool{name: "echo", output: `{"said": "hello"}`})

	a := NewAgent(testAgentConfig(), mockRegistry(client), tools, testLog())
	res, usage, err := a.Run(context.Background(), "use the echo tool", nil, "")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "the tool said hello", res.Result)
	assert.Equal(t, 160, res.TokensUsed) // both invocations counted
	assert.Equal(t, 130, usage.InputTokens)
	assert.Equal(t, 30, usage.OutputTokens)
}

func TestAgentRun_ToolCallsBoundedToOneRound(t *testing.T) {
	var calls int32
	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			atomic.AddInt32(&calls, 1)
			// Always asks for another tool call.
			return &llm.CompletionResponse{
				Content: "```tool_call\n{\"tool\": \"echo\", \"input\": {}}\n```",
			}, nil
		},
	}

	tools := NewToolRegistry()
	tools.Register(&staticTool{name: "echo", output: "{}"})

	a := NewAgent(testAgentConfig(), mockRegistry(client), tools, testLog())
	res, _, err := a.Run(context.Background(), "loop forever", nil, "")
	require.NoError(t, err)

	// Exactly two model invocations regardless of the second response.
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, res.Success)
}

func TestAgentRun_AvgResponseTime(t *testing.T) {
	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			time.Sleep(5 * time.Millisecond)
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}

	a := NewAgent(testAgentConfig(), mockRegistry(client), nil, testLog())
	for i := 0; i < 3; i++ {
		_, _, err := a.Run(context.Background(), "task", nil, "")
		require.NoError(t, err)
	}

	stats := a.Stats()
	assert.Equal(t, 3, stats.TasksCompleted)
	assert.Greater(t, stats.AvgResponseMs, 0.0)
}

type staticTool struct {
	name   string
	output string
}

func (s *staticTool) Name() string        { return s.name }
func (s *staticTool) Description() string { return "static test tool" }
func (s *staticTool) InputSchema() string { return "" }
func (s *staticTool) Execute(ctx context.Context, input string) (string, error) {
	return s.output, nil
}

// --- Pool routing tests ---

func poolFromRoles(t *testing.T) *Pool {
	t.Helper()
	entries := []config.AgentEntry{
		{ID: "a1", Name: "Spec", Role: "specialist", Provider: "openrouter", Model: "gpt-4o"},
		{ID: "a2", Name: "Exec", Role: "executor", Provider: "ollama", Model: "gemma2:7b"},
		{ID: "a3", Name: "Res", Role: "researcher", Provider: "openrouter", Model: "gemini-2.5-flash"},
		{ID: "a4", Name: "Crit", Role: "critic", Provider: "ollama", Model: "llama3.2:8b"},
	}
	reg := mockRegistry(&llm.MockClient{ProviderName: "mock"})
	return NewPool(entries, reg, NewToolRegistry(), testLog())
}

func TestPoolSelect_Keywords(t *testing.T) {
	pool := poolFromRoles(t)

	tests := []struct {
		task string
		want string
	}{
		{"please debug this code for me", "a1"},
		{"write a program that sorts", "a1"},
		{"research the history of Go", "a3"},
		{"find the best library", "a3"},
		{"analyze this data set", "a2"},
		{"calculate the total", "a2"},
		{"hello there", "a1"}, // no keyword, first agent
	}
	for _, tt := range tests {
		got := pool.Select(tt.task)
		require.NotNil(t, got, tt.task)
		assert.Equal(t, tt.want, got.Config().ID, "task: %s", tt.task)
	}
}

func TestPoolSelect_CaseInsensitive(t *testing.T) {
	pool := poolFromRoles(t)
	assert.Equal(t, "a3", pool.Select("SEARCH for answers").Config().ID)
}

func TestPoolSelect_MissingRoleFallsBack(t *testing.T) {
	entries := []config.AgentEntry{
		{ID: "only", Name: "Only", Role: "critic", Provider: "ollama", Model: "llama3.2:8b"},
	}
	reg := mockRegistry(&llm.MockClient{ProviderName: "mock"})
	pool := NewPool(entries, reg, NewToolRegistry(), testLog())

	// Keyword matches a role with no agent; first agent wins.
	assert.Equal(t, "only", pool.Select("debug my code").Config().ID)
}

func TestPoolGetAndStats(t *testing.T) {
	pool := poolFromRoles(t)

	a, ok := pool.Get("a2")
	require.True(t, ok)
	assert.Equal(t, "Exec", a.Config().Name)

	_, ok = pool.Get("nope")
	assert.False(t, ok)

	stats := pool.Stats()
	assert.Len(t, stats, 4)
}

// --- Workbench tool tests ---

type stubToolStore struct{ snaps []toolreg.ToolSnapshot }

func (s *stubToolStore) SaveTool(toolreg.ToolSnapshot) error { return nil }
func (s *stubToolStore) DeleteTool(string) error             { return nil }
func (s *stubToolStore) LoadTools() ([]toolreg.ToolSnapshot, error) {
	return s.snaps, nil
}

type stubToolExecutor struct{ out []byte }

func (s *stubToolExecutor) Execute(ctx context.Context, installPath, function string, params map[string]any) ([]byte, error) {
	return s.out, nil
}

type stubCatalog struct{ payloads map[string][]byte }

func (s *stubCatalog) Search(ctx context.Context, query string, limit int) ([]toolreg.ToolDefinition, error) {
	var defs []toolreg.ToolDefinition
	for name := range s.payloads {
		defs = append(defs, toolreg.ToolDefinition{Name: name, Version: "1.0.0"})
	}
	return defs, nil
}

func (s *stubCatalog) GetInfo(ctx context.Context, name string) (*toolreg.ToolDefinition, error) {
	if _, ok := s.payloads[name]; !ok {
		return nil, nil
	}
	return &toolreg.ToolDefinition{Name: name, Version: "1.0.0"}, nil
}

func (s *stubCatalog) Download(ctx context.Context, name, version string) ([]byte, error) {
	return s.payloads[name], nil
}

func TestWorkbenchTool_Execute(t *testing.T) {
	store := &stubToolStore{snaps: []toolreg.ToolSnapshot{
		{Name: "calculator", Status: toolreg.StatusInstalled, InstallPath: t.TempDir()},
	}}
	reg := toolreg.NewRegistry(toolreg.Options{
		Dir:      t.TempDir(),
		Store:    store,
		Executor: &stubToolExecutor{out: []byte(`{"result": 4}`)},
		Log:      testLog(),
	})

	tools := NewToolRegistry()
	tools.AttachWorkbench(reg)

	tool, ok := tools.Get("calculator")
	require.True(t, ok)

	out, err := tool.Execute(context.Background(), `{"function": "evaluate", "parameters": {"expression": "2+2"}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": 4}`, out)
}

func TestToolRegistry_WorkbenchLookupIsLive(t *testing.T) {
	reg := toolreg.NewRegistry(toolreg.Options{
		Dir:      t.TempDir(),
		Catalog:  &stubCatalog{payloads: map[string][]byte{"weather": []byte("print('ok')\n")}},
		Executor: &stubToolExecutor{out: []byte(`{"temp": 21}`)},
		Log:      testLog(),
	})

	tools := NewToolRegistry()
	tools.AttachWorkbench(reg)

	_, ok := tools.Get("weather")
	require.False(t, ok)
	assert.Empty(t, tools.Definitions())

	// Installed after attachment, visible without re-registration.
	res := reg.Install(context.Background(), "weather", "")
	require.True(t, res.Success, res.Message)

	tool, ok := tools.Get("weather")
	require.True(t, ok)
	out, err := tool.Execute(context.Background(), `{"function": "current"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temp": 21}`, out)

	defs := tools.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "weather", defs[0].Name)
}

func TestWorkbenchTool_BadInput(t *testing.T) {
	reg := toolreg.NewRegistry(toolreg.Options{Dir: t.TempDir(), Log: testLog()})
	tool := NewWorkbenchTool(reg, "calculator", "")

	_, err := tool.Execute(context.Background(), "not json")
	assert.Error(t, err)
}

// --- Prompt tests ---

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{
		AgentName: "Atlas",
		Role:      "specialist",
		Tools: []ToolDef{
			{Name: "calculator", Description: "does math"},
		},
		ContextBlock: "Relevant context:\n\n[1] Paris is in France",
		ExtraPrompt:  "Answer in one sentence.",
	})

	assert.Contains(t, prompt, "You are Atlas, the team's specialist.")
	assert.Contains(t, prompt, "tool_call")
	assert.Contains(t, prompt, "calculator")
	assert.Contains(t, prompt, "Paris is in France")
	assert.Contains(t, prompt, "Answer in one sentence.")
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "openrouter"}
	reg.Register("openrouter", mock)
	reg.Alias("gpt-4o", "openrouter")
	reg.Alias("gemini-2.5-flash", "openrouter")

	client, err := reg.Resolve("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", client.Name())

	client, err = reg.Resolve("gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", client.Name())
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "default-llm"}
	reg.Register("default-llm", mock)
	reg.SetFallback("default-llm")

	// Unknown model should resolve to fallback
	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b"})

	names := reg.List()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "a")
	assert.Contains(t, names, "b")
}

func TestNewRegistryFromConfig(t *testing.T) {
	providers := config.ProvidersConfig{
		OpenRouter: config.ProviderEntry{BaseURL: "https://openrouter.ai/api/v1", APIKey: "k"},
		Ollama:     config.ProviderEntry{BaseURL: "http://localhost:11434"},
	}
	agents := []config.AgentEntry{
		{ID: "a1", Provider: "openrouter", Model: "gpt-4o"},
		{ID: "a2", Provider: "ollama", Model: "gemma2:7b"},
	}

	reg := NewRegistryFromConfig(providers, agents, silentLog())
	require.NotNil(t, reg)

	client, err := reg.Resolve("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", client.Name())

	client, err = reg.Resolve("gemma2:7b")
	require.NoError(t, err)
	assert.Equal(t, "ollama", client.Name())
}

// --- Failover tests ---

func TestFailoverUsesPrimary(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openrouter", &MockClient{
		ProviderName: "openrouter",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: "primary", Model: req.Model}, nil
		},
	})
	reg.Alias("gpt-4o", "openrouter")

	f := NewFailover(reg, "gpt-4o", []string{"gemma2:7b"}, silentLog())
	resp, err := f.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
}

func TestFailoverFallsBackOnRetryable(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openrouter", &MockClient{
		ProviderName: "openrouter",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "openrouter", Code: 429, Message: "rate limited"}
		},
	})
	reg.Register("ollama", &MockClient{
		ProviderName: "ollama",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: "fallback"}, nil
		},
	})
	reg.Alias("gpt-4o", "openrouter")
	reg.Alias("gemma2:7b", "ollama")

	f := NewFailover(reg, "gpt-4o", []string{"gemma2:7b"}, silentLog())
	resp, err := f.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Content)
}

func TestFailoverStopsOnNonRetryable(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openrouter", &MockClient{
		ProviderName: "openrouter",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "openrouter", Code: 400, Message: "bad request"}
		},
	})
	reg.Register("ollama", &MockClient{ProviderName: "ollama"})
	reg.Alias("gpt-4o", "openrouter")
	reg.Alias("gemma2:7b", "ollama")

	f := NewFailover(reg, "gpt-4o", []string{"gemma2:7b"}, silentLog())
	_, err := f.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad request")
}

// --- MockClient tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Content: "The answer is 42",
				Usage:   Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is the answer?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientStream(t *testing.T) {
	mock := &MockClient{ProviderName: "test"}

	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "done", events[len(events)-1].Type)
}

// --- OpenRouter client tests ---

func TestOpenRouterComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4o",
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4},
		})
	}))
	defer srv.Close()

	client := NewOpenRouterClient(srv.URL, "test-key", "gpt-4o")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOpenRouterCompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	client := NewOpenRouterClient(srv.URL, "test-key", "gpt-4o")
	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)

	provErr, ok := err.(*ProviderError)
	require.True(t, ok)
	assert.Equal(t, 429, provErr.Code)
	assert.True(t, isRetryable(err))
}

// --- Ollama client tests ---

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gemma2:7b", body["model"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":             "gemma2:7b",
			"message":           map[string]string{"role": "assistant", "content": "local hello"},
			"done":              true,
			"prompt_eval_count": 8,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "gemma2:7b")
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "local hello", resp.Content)
	assert.Equal(t, 8, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

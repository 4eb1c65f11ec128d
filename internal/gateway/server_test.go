package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis/internal/agent"
	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/logging"
	"github.com/jarvislabs/jarvis/internal/orchestrator"
	"github.com/jarvislabs/jarvis/internal/toolreg"
	"github.com/jarvislabs/jarvis/internal/voice"
)

const testToken = "test-token-123"

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type stubVoice struct {
	transcript string
}

func (s *stubVoice) Transcribe(ctx context.Context, audio []byte, format string, sampleRate int) (string, error) {
	return s.transcript, nil
}

func (s *stubVoice) Synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	return []byte("speech"), nil
}

func testOrchestrator(t *testing.T, v voice.Client) *orchestrator.Orchestrator {
	t.Helper()
	log := testLog()

	client := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{
				Content: "done: " + req.Messages[len(req.Messages)-1].Content,
				Model:   "gpt-4o",
				Usage:   llm.Usage{InputTokens: 100, OutputTokens: 50},
			}, nil
		},
	}
	reg := llm.NewRegistry(log)
	reg.Register("mock", client)
	reg.SetFallback("mock")

	pool := agent.NewPool([]config.AgentEntry{
		{ID: "gen", Name: "Jarvis", Role: "manager", Provider: "mock", Model: "gpt-4o"},
	}, reg, agent.NewToolRegistry(), log)

	cfg := config.Defaults()
	o := orchestrator.New(orchestrator.Options{
		Config: &cfg,
		Pool:   pool,
		Ledger: costledger.NewLedger(costledger.Options{DefaultLimit: domain.MoneyFromFloat(100)}, log),
		Tools:  toolreg.NewRegistry(toolreg.Options{Dir: t.TempDir(), Log: log}),
		Voice:  v,
		Hooks:  hooks.NewManager(log),
		Log:    log,
	})
	require.NoError(t, o.Initialize(context.Background()))
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return o
}

func testGateway(t *testing.T, v voice.Client) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.GatewayConfig{
		Auth: config.GatewayAuth{Token: testToken},
	}
	srv := New(cfg, testOrchestrator(t, v), testLog())

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)

	ts := httptest.NewServer(withMiddleware(mux, testLog(), nil))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialSession(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + testToken
	if sessionID != "" {
		wsURL += "&session=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// connection_status arrives first
	env := readEnvelope(t, conn)
	require.Equal(t, TypeConnectionStatus, env.Type)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, msgType, sessionID string, data any) {
	t.Helper()
	env, err := NewEnvelope(msgType, sessionID, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// --- WebSocket ---

func TestWebSocket_ConnectionStatus(t *testing.T) {
	_, ts := testGateway(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + testToken + "&session=s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeConnectionStatus, env.Type)
	assert.Equal(t, "s1", env.SessionID)

	var status ConnectionStatusData
	require.NoError(t, env.DataAs(&status))
	assert.Equal(t, "s1", status.SessionID)
	assert.Equal(t, "connected", status.State)
}

func TestWebSocket_AuthRequired(t *testing.T) {
	_, ts := testGateway(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_TextTurn(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeTextInput, "s1", TextInputData{Message: "hello"})

	// agent_response first, then cost_update, in order.
	env := readEnvelope(t, conn)
	require.Equal(t, TypeAgentResponse, env.Type)
	var resp AgentResponseData
	require.NoError(t, env.DataAs(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "done: hello", resp.Message)
	assert.Equal(t, "gen", resp.AgentID)
	assert.Equal(t, 150, resp.TokensUsed)
	assert.Greater(t, int64(resp.Cost), int64(0))

	env = readEnvelope(t, conn)
	require.Equal(t, TypeCostUpdate, env.Type)
	var cost CostUpdateData
	require.NoError(t, env.DataAs(&cost))
	assert.Greater(t, int64(cost.LastOperationCost), int64(0))
	assert.Equal(t, resp.Cost, cost.LastOperationCost)
	// First turn of a fresh session: session total equals the
	// response's reported cost.
	assert.Equal(t, resp.Cost, cost.SessionCost)
	assert.Equal(t, domain.MoneyFromFloat(100), cost.BudgetLimit)
}

func TestWebSocket_EmptyTextIsRecoverable(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeTextInput, "s1", TextInputData{Message: "  "})

	env := readEnvelope(t, conn)
	require.Equal(t, TypeError, env.Type)
	var errData ErrorData
	require.NoError(t, env.DataAs(&errData))
	assert.Equal(t, CodeEmptyMessage, errData.Code)
	assert.True(t, errData.Recoverable)

	// Connection still usable after the error.
	sendEnvelope(t, conn, TypeHeartbeat, "s1", nil)
	env = readEnvelope(t, conn)
	assert.Equal(t, TypeHeartbeat, env.Type)
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, "telepathy", "s1", nil)

	env := readEnvelope(t, conn)
	require.Equal(t, TypeError, env.Type)
	var errData ErrorData
	require.NoError(t, env.DataAs(&errData))
	assert.Equal(t, CodeUnknownMessageType, errData.Code)
}

func TestWebSocket_SystemCommands(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeSystemCommand, "s1", SystemCommandData{Command: "status"})
	env := readEnvelope(t, conn)
	assert.Equal(t, TypeSystemStatus, env.Type)

	// The snapshot is scoped to this session's counters.
	var sessStatus orchestrator.SessionStatus
	require.NoError(t, env.DataAs(&sessStatus))
	assert.Equal(t, "s1", sessStatus.Session.SessionID)

	sendEnvelope(t, conn, TypeSystemCommand, "s1", SystemCommandData{Command: "pause"})
	env = readEnvelope(t, conn)
	require.Equal(t, TypeConnectionStatus, env.Type)
	var status ConnectionStatusData
	require.NoError(t, env.DataAs(&status))
	assert.Equal(t, "paused", status.State)

	// Paused session rejects text with a recoverable error.
	sendEnvelope(t, conn, TypeTextInput, "s1", TextInputData{Message: "hello"})
	env = readEnvelope(t, conn)
	require.Equal(t, TypeError, env.Type)
	var errData ErrorData
	require.NoError(t, env.DataAs(&errData))
	assert.Equal(t, CodeTextProcessingError, errData.Code)

	sendEnvelope(t, conn, TypeSystemCommand, "s1", SystemCommandData{Command: "resume"})
	env = readEnvelope(t, conn)
	require.Equal(t, TypeConnectionStatus, env.Type)
	require.NoError(t, env.DataAs(&status))
	assert.Equal(t, "active", status.State)

	sendEnvelope(t, conn, TypeSystemCommand, "s1", SystemCommandData{Command: "reset"})
	env = readEnvelope(t, conn)
	require.Equal(t, TypeConnectionStatus, env.Type)
	require.NoError(t, env.DataAs(&status))
	assert.Equal(t, "reset", status.State)
}

func TestWebSocket_UnknownCommand(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeSystemCommand, "s1", SystemCommandData{Command: "self-destruct"})

	env := readEnvelope(t, conn)
	require.Equal(t, TypeError, env.Type)
	var errData ErrorData
	require.NoError(t, env.DataAs(&errData))
	assert.Equal(t, CodeUnknownCommand, errData.Code)
	assert.True(t, errData.Recoverable)
}

func TestWebSocket_VoiceTurn(t *testing.T) {
	_, ts := testGateway(t, &stubVoice{transcript: "what time is it"})
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeVoiceInput, "s1", VoiceInputData{Audio: []byte("pcm"), Format: "wav", SampleRate: 16000})

	env := readEnvelope(t, conn)
	require.Equal(t, TypeAgentResponse, env.Type)
	var resp AgentResponseData
	require.NoError(t, env.DataAs(&resp))
	assert.Equal(t, "what time is it", resp.Transcript)
	assert.Equal(t, "done: what time is it", resp.Message)
	assert.Equal(t, []byte("speech"), resp.Audio)
	assert.False(t, resp.VoiceDegraded)

	env = readEnvelope(t, conn)
	assert.Equal(t, TypeCostUpdate, env.Type)
}

func TestWebSocket_VoiceSilenceIsNoOp(t *testing.T) {
	_, ts := testGateway(t, &stubVoice{transcript: " "})
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeVoiceInput, "s1", VoiceInputData{Audio: []byte("pcm"), Format: "wav"})

	// No response for silence; the next heartbeat answers immediately.
	sendEnvelope(t, conn, TypeHeartbeat, "s1", nil)
	env := readEnvelope(t, conn)
	assert.Equal(t, TypeHeartbeat, env.Type)
}

func TestWebSocket_VoiceDisabled(t *testing.T) {
	_, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeVoiceInput, "s1", VoiceInputData{Audio: []byte("pcm")})

	env := readEnvelope(t, conn)
	require.Equal(t, TypeError, env.Type)
	var errData ErrorData
	require.NoError(t, env.DataAs(&errData))
	assert.Equal(t, CodeVoiceProcessingError, errData.Code)
}

func TestWebSocket_SessionLockReleasedOnDisconnect(t *testing.T) {
	srv, ts := testGateway(t, nil)
	conn := dialSession(t, ts, "s1")

	sendEnvelope(t, conn, TypeTextInput, "s1", TextInputData{Message: "hello"})
	readEnvelope(t, conn) // agent_response
	readEnvelope(t, conn) // cost_update

	lockCount := func() int {
		srv.sessionMu.Lock()
		defer srv.sessionMu.Unlock()
		return len(srv.sessions)
	}
	require.Equal(t, 1, lockCount())

	conn.Close()

	// The last client for the session left; its mutex goes with it.
	assert.Eventually(t, func() bool { return lockCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

// --- HTTP ---

func authedGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTP_HealthOpen(t *testing.T) {
	_, ts := testGateway(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestHTTP_StatusRequiresAuth(t *testing.T) {
	_, ts := testGateway(t, nil)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = authedGet(t, ts.URL+"/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status orchestrator.SystemStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Initialized)
	require.Len(t, status.Agents, 1)
	assert.Equal(t, "gen", status.Agents[0].ID)
}

func TestHTTP_AgentsAndTools(t *testing.T) {
	_, ts := testGateway(t, nil)

	resp := authedGet(t, ts.URL+"/agents")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var agents map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	assert.Contains(t, agents, "agents")

	resp = authedGet(t, ts.URL+"/tools")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = authedGet(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var metrics map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	assert.Contains(t, metrics, "cost")
	assert.Contains(t, metrics, "tools")
}

func TestHTTP_ProcessTask(t *testing.T) {
	_, ts := testGateway(t, nil)

	body, _ := json.Marshal(ProcessTaskRequest{SessionID: "s1", Content: "hello"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/tasks/process", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ProcessTaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.TaskID)
	assert.Equal(t, "done: hello", out.Result)
	assert.Equal(t, "gen", out.AgentID)
	assert.Equal(t, 150, out.TokensUsed)
	assert.Greater(t, int64(out.Cost), int64(0))
	require.NotNil(t, out.CostUpdate)
	assert.Equal(t, out.Cost, out.CostUpdate.LastOperationCost)
	assert.Equal(t, out.Cost, out.CostUpdate.SessionCost)
}

func TestHTTP_ProcessTaskEmpty(t *testing.T) {
	_, ts := testGateway(t, nil)

	body, _ := json.Marshal(ProcessTaskRequest{SessionID: "s1", Content: " "})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/tasks/process", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_NotFound(t *testing.T) {
	_, ts := testGateway(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- Server lifecycle ---

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		port int
		want string
	}{
		{"loopback", 18789, "127.0.0.1:18789"},
		{"lan", 9999, "0.0.0.0:9999"},
		{"auto", 8080, "0.0.0.0:8080"},
		{"custom", 3000, "0.0.0.0:3000"},
		{"unknown", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			addr := resolveBindAddr(config.GatewayConfig{Bind: tt.bind, Port: tt.port})
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestServerStart(t *testing.T) {
	cfg := config.GatewayConfig{Port: 0, Bind: "loopback"}
	srv := New(cfg, testOrchestrator(t, nil), testLog())

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Give it a moment to start
	time.Sleep(100 * time.Millisecond)
	cancel()

	err := <-errCh
	assert.NoError(t, err)
}

func TestHookFanout(t *testing.T) {
	mgr := hooks.NewManager(testLog())
	cfg := config.GatewayConfig{Auth: config.GatewayAuth{Token: testToken}}
	srv := New(cfg, testOrchestrator(t, nil), testLog(), WithHooks(mgr))

	mux := http.NewServeMux()
	srv.registerHTTPRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	conn := dialSession(t, ts, "s1")

	mgr.Emit(context.Background(), hooks.EventBudgetAlert, map[string]any{
		"sessionId": "s1",
		"tier":      "warning",
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeCostUpdate, env.Type)
}

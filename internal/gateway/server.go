// Package gateway is the HTTP and WebSocket front door. WebSocket
// clients exchange typed envelopes for conversational turns; the HTTP
// surface exposes task submission and platform status.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/logging"
	"github.com/jarvislabs/jarvis/internal/orchestrator"
	"github.com/jarvislabs/jarvis/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const maxPayloadBytes = 4 * 1024 * 1024

// Server is the Jarvis gateway HTTP + WebSocket server.
type Server struct {
	cfg     config.GatewayConfig
	orch    *orchestrator.Orchestrator
	auth    ResolvedAuth
	log     *logging.Logger
	clients *ClientRegistry
	hooks   *hooks.Manager

	// One mutating command at a time per session; concurrent turns on
	// the same session serialize here.
	sessionMu sync.Mutex
	sessions  map[string]*sync.Mutex

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks wires the hook manager. Budget alerts and tool installs
// fan out to every connected client.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// New creates a gateway server in front of the orchestrator.
func New(cfg config.GatewayConfig, orch *orchestrator.Orchestrator, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		orch:        orch,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		sessions:    make(map[string]*sync.Mutex),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerHookFanout()
	return s
}

// registerHookFanout broadcasts ledger and workbench events to every
// connected client.
func (s *Server) registerHookFanout() {
	if s.hooks == nil {
		return
	}
	s.hooks.On(hooks.EventBudgetAlert, "gateway.broadcast", func(ctx context.Context, p hooks.Payload) error {
		s.clients.Broadcast(TypeCostUpdate, p.Data)
		return nil
	})
	s.hooks.On(hooks.EventToolInstalled, "gateway.broadcast", func(ctx context.Context, p hooks.Payload) error {
		s.clients.Broadcast(TypeToolExecution, p.Data)
		return nil
	})
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// sessionLock returns the mutex serializing one session's commands.
func (s *Server) sessionLock(sessionID string) *sync.Mutex {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	mu, ok := s.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		s.sessions[sessionID] = mu
	}
	return mu
}

// releaseSessionLock drops a session's mutex once no connected client
// shares the session. The next command for the session, WebSocket or
// HTTP, gets a fresh mutex from sessionLock.
func (s *Server) releaseSessionLock(sessionID string) {
	if s.clients.SessionClients(sessionID) > 0 {
		return
	}
	s.sessionMu.Lock()
	delete(s.sessions, sessionID)
	s.sessionMu.Unlock()
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)

	handler := withMiddleware(mux, s.log, s.cfg.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if !s.auth.Enabled() && s.cfg.Bind != "loopback" && s.cfg.Bind != "" {
		s.log.Warn().Msg("gateway is reachable beyond loopback without auth")
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode()).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket authenticates, upgrades, and runs the envelope loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	if !s.auth.Authorize(requestToken(r)) {
		s.authLimiter.recordFailure(r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayloadBytes)

	client := NewClient(conn, sessionID, s.log.Sub("ws"))
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
		s.releaseSessionLock(client.SessionID)
	}()

	s.orch.Session(sessionID)
	if err := client.SendTyped(TypeConnectionStatus, ConnectionStatusData{
		SessionID: sessionID,
		Version:   version.Version,
		State:     "connected",
	}); err != nil {
		s.log.Warn().Err(err).Msg("connection status send failed")
		return
	}

	s.readLoop(r.Context(), client)
}

// readLoop processes inbound envelopes until the connection drops.
// Malformed or unknown messages produce recoverable error envelopes,
// never a close.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		env, err := client.Read()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
		s.dispatch(ctx, client, env)
	}
}

// dispatch routes one envelope by type.
func (s *Server) dispatch(ctx context.Context, client *Client, env Envelope) {
	switch env.Type {
	case TypeTextInput:
		s.handleTextInput(ctx, client, env)
	case TypeVoiceInput:
		s.handleVoiceInput(ctx, client, env)
	case TypeSystemCommand:
		s.handleSystemCommand(ctx, client, env)
	case TypeHeartbeat:
		if err := client.SendTyped(TypeHeartbeat, map[string]any{"server_time": time.Now().UnixMilli()}); err != nil {
			s.log.Warn().Err(err).Msg("heartbeat send failed")
		}
	default:
		client.SendError(CodeUnknownMessageType, "unknown message type: "+env.Type)
	}
}

func (s *Server) handleTextInput(ctx context.Context, client *Client, env Envelope) {
	var data TextInputData
	if err := env.DataAs(&data); err != nil {
		client.SendError(CodeTextProcessingError, "invalid text_input payload: "+err.Error())
		return
	}
	if strings.TrimSpace(data.Message) == "" {
		client.SendError(CodeEmptyMessage, "message text is empty")
		return
	}

	mu := s.sessionLock(client.SessionID)
	mu.Lock()
	outcome, err := s.orch.ProcessTask(ctx, client.SessionID, data.Message)
	mu.Unlock()

	if err != nil {
		client.SendError(CodeTextProcessingError, err.Error())
		return
	}

	s.sendTaskOutcome(client, agentResponseFromOutcome(outcome), outcome)
}

func (s *Server) handleVoiceInput(ctx context.Context, client *Client, env Envelope) {
	var data VoiceInputData
	if err := env.DataAs(&data); err != nil {
		client.SendError(CodeVoiceProcessingError, "invalid voice_input payload: "+err.Error())
		return
	}
	if len(data.Audio) == 0 {
		client.SendError(CodeEmptyMessage, "audio payload is empty")
		return
	}

	mu := s.sessionLock(client.SessionID)
	mu.Lock()
	vo, err := s.orch.ProcessVoice(ctx, client.SessionID, data.Audio, data.Format, data.SampleRate)
	mu.Unlock()

	if err != nil {
		client.SendError(CodeVoiceProcessingError, err.Error())
		return
	}
	if vo.Task == nil {
		// Silence transcribed to nothing; nothing to answer.
		return
	}

	resp := agentResponseFromOutcome(vo.Task)
	resp.Transcript = vo.Transcript
	resp.Audio = vo.Audio
	resp.VoiceDegraded = vo.Degraded
	s.sendTaskOutcome(client, resp, vo.Task)
}

// sendTaskOutcome emits the agent_response followed by the cost_update,
// in that order. Failed turns carry no cost update.
func (s *Server) sendTaskOutcome(client *Client, resp AgentResponseData, outcome *orchestrator.TaskOutcome) {
	if err := client.SendTyped(TypeAgentResponse, resp); err != nil {
		s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("agent response send failed")
		return
	}
	if !outcome.Result.Success {
		return
	}

	limit, remaining := s.orch.Ledger().BudgetFor(client.SessionID)
	update := CostUpdateData{
		SessionCost:       s.orch.Ledger().SessionTotal(client.SessionID),
		LastOperationCost: outcome.Result.Cost,
		BudgetRemaining:   remaining,
		BudgetLimit:       limit,
		Alerts:            outcome.Alerts,
	}
	if err := client.SendTyped(TypeCostUpdate, update); err != nil {
		s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("cost update send failed")
	}
}

func agentResponseFromOutcome(outcome *orchestrator.TaskOutcome) AgentResponseData {
	r := outcome.Result
	return AgentResponseData{
		TaskID:       r.TaskID,
		Success:      r.Success,
		Message:      r.Result,
		Error:        r.Error,
		AgentID:      r.AgentID,
		AgentName:    r.AgentName,
		Model:        r.Model,
		TokensUsed:   r.TokensUsed,
		Cost:         r.Cost,
		ProcessingMs: r.ProcessingMs,
	}
}

func (s *Server) handleSystemCommand(ctx context.Context, client *Client, env Envelope) {
	var data SystemCommandData
	if err := env.DataAs(&data); err != nil {
		client.SendError(CodeUnknownCommand, "invalid system_command payload: "+err.Error())
		return
	}

	ack := func(state string, err error) {
		if err != nil {
			client.SendError(CodeInternalError, err.Error())
			return
		}
		if sendErr := client.SendTyped(TypeConnectionStatus, ConnectionStatusData{
			SessionID: client.SessionID,
			State:     state,
		}); sendErr != nil {
			s.log.Warn().Err(sendErr).Msg("command ack send failed")
		}
	}

	mu := s.sessionLock(client.SessionID)
	switch data.Command {
	case "status":
		if err := client.SendTyped(TypeSystemStatus, s.orch.SessionStatus(ctx, client.SessionID)); err != nil {
			s.log.Warn().Err(err).Msg("status send failed")
		}
	case "pause":
		mu.Lock()
		err := s.orch.PauseSession(client.SessionID)
		mu.Unlock()
		ack("paused", err)
	case "resume":
		mu.Lock()
		err := s.orch.ResumeSession(client.SessionID)
		mu.Unlock()
		ack("active", err)
	case "reset":
		mu.Lock()
		err := s.orch.ResetSession(client.SessionID)
		mu.Unlock()
		ack("reset", err)
	default:
		client.SendError(CodeUnknownCommand, "unknown command: "+data.Command)
	}
}

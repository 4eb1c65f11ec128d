package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/orchestrator"
	"github.com/jarvislabs/jarvis/internal/version"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux. The
// health probe stays open; everything else goes through auth.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("GET /agents", s.requireAuth(s.handleAgents))
	mux.HandleFunc("GET /tools", s.requireAuth(s.handleTools))
	mux.HandleFunc("GET /metrics", s.requireAuth(s.handleMetrics))
	mux.HandleFunc("POST /tasks/process", s.requireAuth(s.handleProcessTask))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// requireAuth enforces bearer-token auth when a token is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Authorize(requestToken(r)) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// HealthResponse is the public health probe body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// handleHealth reports tri-state health. Degraded still answers 200;
// only unhealthy turns the probe red.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.orch.Status(r.Context())

	code := http.StatusOK
	if status.Health == domain.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:        string(status.Health),
		Version:       version.Version,
		UptimeSeconds: status.UptimeSeconds,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status(r.Context()))
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	status := s.orch.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"agents": status.Agents})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.orch.Tools().List()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":    s.orch.Tools().Metrics(),
		"cost":     s.orch.Ledger().GetGlobalSummary(),
		"sessions": s.orch.SessionCount(),
		"clients":  s.clients.Count(),
	})
}

// ProcessTaskRequest is the body of POST /tasks/process. Context is
// optional caller-supplied metadata; priority is accepted for forward
// compatibility and currently unused.
type ProcessTaskRequest struct {
	Content   string         `json:"content"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context,omitempty"`
	Priority  int            `json:"priority,omitempty"`
}

// ProcessTaskResponse is the flattened task outcome, plus the same
// cost accounting a WebSocket turn would receive.
type ProcessTaskResponse struct {
	TaskID       string          `json:"task_id"`
	Result       string          `json:"result"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	AgentID      string          `json:"agent_id"`
	TokensUsed   int             `json:"tokens_used"`
	Cost         domain.Money    `json:"cost"`
	ProcessingMs int64           `json:"processing_time_ms"`
	CostUpdate   *CostUpdateData `json:"cost_update,omitempty"`
}

func (s *Server) handleProcessTask(w http.ResponseWriter, r *http.Request) {
	var req ProcessTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "http"
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required", "code": CodeEmptyMessage})
		return
	}

	mu := s.sessionLock(req.SessionID)
	mu.Lock()
	outcome, err := s.orch.ProcessTask(r.Context(), req.SessionID, req.Content)
	mu.Unlock()

	if err != nil {
		switch err {
		case orchestrator.ErrSessionPaused:
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case orchestrator.ErrNotInitialized:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	res := outcome.Result
	resp := ProcessTaskResponse{
		TaskID:       res.TaskID,
		Result:       res.Result,
		Success:      res.Success,
		Error:        res.Error,
		AgentID:      res.AgentID,
		TokensUsed:   res.TokensUsed,
		Cost:         res.Cost,
		ProcessingMs: res.ProcessingMs,
	}
	if res.Success {
		limit, remaining := s.orch.Ledger().BudgetFor(req.SessionID)
		resp.CostUpdate = &CostUpdateData{
			SessionCost:       s.orch.Ledger().SessionTotal(req.SessionID),
			LastOperationCost: res.Cost,
			BudgetRemaining:   remaining,
			BudgetLimit:       limit,
			Alerts:            outcome.Alerts,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

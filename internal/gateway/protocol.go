package gateway

import (
	"encoding/json"
	"time"

	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
)

// Message types carried in the envelope. Inbound types come from the
// client; outbound types are produced by the server.
const (
	// Inbound
	TypeTextInput     = "text_input"
	TypeVoiceInput    = "voice_input"
	TypeSystemCommand = "system_command"
	TypeHeartbeat     = "heartbeat"

	// Outbound
	TypeAgentResponse    = "agent_response"
	TypeToolExecution    = "tool_execution"
	TypeSystemStatus     = "system_status"
	TypeCostUpdate       = "cost_update"
	TypeError            = "error"
	TypeConnectionStatus = "connection_status"
)

// Error codes carried in error envelopes. All are recoverable; the
// connection stays open.
const (
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodeUnknownMessageType   = "UNKNOWN_MESSAGE_TYPE"
	CodeVoiceProcessingError = "VOICE_PROCESSING_ERROR"
	CodeTextProcessingError  = "TEXT_PROCESSING_ERROR"
	CodeEmptyMessage         = "EMPTY_MESSAGE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Envelope is the wire format for every WebSocket message in both
// directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
}

// NewEnvelope wraps a payload in an envelope stamped with the current
// time.
func NewEnvelope(msgType, sessionID string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}, nil
}

// TextInputData is the payload of a text_input envelope. Context is
// optional caller-supplied metadata for the turn.
type TextInputData struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// VoiceInputData is the payload of a voice_input envelope. Audio is
// base64 on the wire.
type VoiceInputData struct {
	Audio      []byte `json:"audio"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// SystemCommandData is the payload of a system_command envelope.
// Commands: status, pause, resume, reset.
type SystemCommandData struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AgentResponseData is the payload of an agent_response envelope. Voice
// turns additionally carry the transcript and synthesized audio.
type AgentResponseData struct {
	TaskID        string       `json:"task_id,omitempty"`
	Success       bool         `json:"success"`
	Message       string       `json:"message,omitempty"`
	Error         string       `json:"error,omitempty"`
	AgentID       string       `json:"agent_id,omitempty"`
	AgentName     string       `json:"agent_name,omitempty"`
	Model         string       `json:"model,omitempty"`
	TokensUsed    int          `json:"tokens_used"`
	Cost          domain.Money `json:"cost"`
	ProcessingMs  int64        `json:"processing_time_ms,omitempty"`
	Transcript    string       `json:"transcript,omitempty"`
	Audio         []byte       `json:"audio,omitempty"`
	VoiceDegraded bool         `json:"voice_degraded,omitempty"`
}

// CostUpdateData follows every successful agent_response. SessionCost
// always equals the session total after the operation it reports.
type CostUpdateData struct {
	SessionCost       domain.Money             `json:"session_cost"`
	LastOperationCost domain.Money             `json:"last_operation_cost"`
	BudgetRemaining   domain.Money             `json:"budget_remaining"`
	BudgetLimit       domain.Money             `json:"budget_limit"`
	Alerts            []costledger.BudgetAlert `json:"alerts,omitempty"`
}

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Code        string `json:"error_code"`
	Message     string `json:"error_message"`
	Recoverable bool   `json:"recoverable"`
}

// ConnectionStatusData is sent once after a successful connect and as
// the acknowledgement for session-state commands.
type ConnectionStatusData struct {
	SessionID string `json:"session_id"`
	Version   string `json:"version,omitempty"`
	State     string `json:"state"` // "connected" | "paused" | "active" | "reset"
}

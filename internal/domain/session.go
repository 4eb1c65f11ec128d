package domain

import "time"

// HistoryEntry is one completed turn in a session's history.
type HistoryEntry struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
	Voice     bool      `json:"voice,omitempty"`
}

// Session tracks one user conversation context. State lives in process
// memory for the lifetime of the owning connection handler; absence of
// activity is the only end signal.
type Session struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	TotalCost    Money          `json:"totalCost"`
	TaskCount    int            `json:"taskCount"`
	History      []HistoryEntry `json:"history,omitempty"`
	CurrentAgent string         `json:"currentAgent,omitempty"`
	VoiceEnabled bool           `json:"voiceEnabled,omitempty"`
	Paused       bool           `json:"paused,omitempty"`
}

// NewSession initializes state for a previously-unseen session id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records a completed turn and bumps the activity timestamp.
func (s *Session) Append(entry HistoryEntry) {
	s.History = append(s.History, entry)
	s.TaskCount++
	s.UpdatedAt = time.Now()
}

// Reset clears conversational history but keeps identity and cost; spent
// budget does not come back when a conversation restarts.
func (s *Session) Reset() {
	s.History = nil
	s.TaskCount = 0
	s.CurrentAgent = ""
	s.UpdatedAt = time.Now()
}

package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Money tests ---

func TestMoneyFromFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Money
	}{
		{"zero", 0, 0},
		{"exact", 0.0125, 125},
		{"round half up", 0.00005, 1},
		{"round down", 0.00004, 0},
		{"dollar", 1.0, 10000},
		{"negative floors to zero", -0.5, 0},
		{"large", 100.0, 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MoneyFromFloat(tt.in))
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "0.0125", MoneyFromFloat(0.0125).String())
	assert.Equal(t, "1.0000", MoneyFromFloat(1).String())
	assert.Equal(t, "0.0000", Money(0).String())
	assert.Equal(t, "-0.0001", Money(-1).String())
}

func TestMoneySubFloorsAtZero(t *testing.T) {
	a := MoneyFromFloat(1.0)
	b := MoneyFromFloat(2.5)
	assert.Equal(t, Money(0), a.Sub(b))
	assert.Equal(t, MoneyFromFloat(1.5), b.Sub(a))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(MoneyFromFloat(0.0125))
	require.NoError(t, err)
	assert.Equal(t, "0.0125", string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte("0.0125"), &m))
	assert.Equal(t, MoneyFromFloat(0.0125), m)
}

func TestMoneyAccumulationExact(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear in accumulated totals.
	var total Money
	for i := 0; i < 1000; i++ {
		total = total.Add(MoneyFromFloat(0.0001))
	}
	assert.Equal(t, MoneyFromFloat(0.1), total)
}

// --- Session tests ---

func TestNewSession(t *testing.T) {
	s := NewSession("sess-1")
	assert.Equal(t, "sess-1", s.ID)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, Money(0), s.TotalCost)
	assert.Empty(t, s.History)
	assert.Zero(t, s.TaskCount)
	assert.False(t, s.Paused)
}

func TestSessionAppend(t *testing.T) {
	s := NewSession("sess-1")
	before := s.UpdatedAt

	time.Sleep(time.Millisecond)
	s.Append(HistoryEntry{Input: "hi", Output: "hello", Timestamp: time.Now()})

	assert.Len(t, s.History, 1)
	assert.Equal(t, 1, s.TaskCount)
	assert.True(t, s.UpdatedAt.After(before))
}

func TestSessionResetKeepsCost(t *testing.T) {
	s := NewSession("sess-1")
	s.TotalCost = MoneyFromFloat(1.25)
	s.Append(HistoryEntry{Input: "a", Output: "b", Timestamp: time.Now()})
	s.CurrentAgent = "agent1"

	s.Reset()

	assert.Empty(t, s.History)
	assert.Zero(t, s.TaskCount)
	assert.Empty(t, s.CurrentAgent)
	assert.Equal(t, MoneyFromFloat(1.25), s.TotalCost)
}

// --- Agent tests ---

func TestAgentRoleConstants(t *testing.T) {
	assert.Equal(t, AgentRole("manager"), RoleManager)
	assert.Equal(t, AgentRole("specialist"), RoleSpecialist)
	assert.Equal(t, AgentRole("executor"), RoleExecutor)
	assert.Equal(t, AgentRole("researcher"), RoleResearcher)
	assert.Equal(t, AgentRole("critic"), RoleCritic)
}

func TestAgentConfigJSON(t *testing.T) {
	temp := 0.7
	cfg := AgentConfig{
		ID:           "agent1",
		Name:         "Reasoner",
		Role:         RoleSpecialist,
		Provider:     "openrouter",
		Model:        "gpt-4o",
		SystemPrompt: "You reason.",
		Temperature:  &temp,
		MaxTokens:    2048,
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded AgentConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg, decoded)
}

// --- TaskResult tests ---

func TestTaskResultJSON(t *testing.T) {
	res := TaskResult{
		TaskID:       "task-1",
		Success:      true,
		Result:       "4",
		AgentID:      "agent1",
		AgentName:    "Reasoner",
		Model:        "gpt-4o",
		TokensUsed:   42,
		Cost:         MoneyFromFloat(0.0125),
		ProcessingMs: 350,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cost":0.0125`)

	var decoded TaskResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res, decoded)
}

func TestHealthConstants(t *testing.T) {
	assert.Equal(t, Health("healthy"), HealthHealthy)
	assert.Equal(t, Health("degraded"), HealthDegraded)
	assert.Equal(t, Health("unhealthy"), HealthUnhealthy)
}

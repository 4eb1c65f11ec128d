package costledger

import (
	"sort"
	"sync"
	"time"

	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// UsageRecord is one immutable usage fact in the bounded ledger.
type UsageRecord struct {
	SessionID string            `json:"sessionId"`
	AgentID   string            `json:"agentId"`
	Model     string            `json:"model"`
	OpType    string            `json:"opType"`
	TokensIn  int               `json:"tokensIn"`
	TokensOut int               `json:"tokensOut"`
	Cost      domain.Money      `json:"cost"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Persister receives every appended record for durable storage. Failures
// are logged and ignored; persistence must never fail task processing.
type Persister interface {
	SaveUsage(rec UsageRecord) error
}

// Options configures a Ledger.
type Options struct {
	MaxRecords   int
	DefaultLimit domain.Money
	Thresholds   []float64
	Persister    Persister
}

// Ledger is the cost accounting core: deterministic pricing, a bounded
// append-only record window, separate running accumulators, and budget
// alerting with per-(session, tier) dedup. All methods are safe for
// concurrent use; append and total update commit under one lock so no
// reader observes one without the other.
type Ledger struct {
	mu            sync.RWMutex
	pricing       *PricingTable
	records       []UsageRecord
	sessionTotals map[string]domain.Money
	globalTotal   domain.Money
	budgets       map[string]*budgetState
	defaultLimit  domain.Money
	thresholds    []float64
	maxRecords    int
	persister     Persister
	log           *logging.Logger
}

// NewLedger builds a Ledger with the stock pricing table.
func NewLedger(opts Options, log *logging.Logger) *Ledger {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 10000
	}
	if len(opts.Thresholds) == 0 {
		opts.Thresholds = []float64{0.5, 0.8, 0.9, 1.0}
	}
	return &Ledger{
		pricing:       NewPricingTable(log),
		sessionTotals: map[string]domain.Money{},
		budgets:       map[string]*budgetState{},
		defaultLimit:  opts.DefaultLimit,
		thresholds:    opts.Thresholds,
		maxRecords:    opts.MaxRecords,
		persister:     opts.Persister,
		log:           log.Sub("costledger"),
	}
}

// Pricing exposes the pricing table for status queries and custom rates.
func (l *Ledger) Pricing() *PricingTable { return l.pricing }

// SetSessionBudget sets an explicit budget limit for a session.
func (l *Ledger) SetSessionBudget(sessionID string, limit domain.Money) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureBudgetLocked(sessionID).limit = limit
	l.log.Info().Str("session", sessionID).Str("budget", limit.String()).Msg("session budget set")
}

func (l *Ledger) ensureBudgetLocked(sessionID string) *budgetState {
	b, ok := l.budgets[sessionID]
	if !ok {
		b = &budgetState{limit: l.defaultLimit, sent: map[AlertTier]bool{}}
		l.budgets[sessionID] = b
	}
	return b
}

// RecordUsage prices the event, appends a UsageRecord, bumps the session
// and global totals, and evaluates budget thresholds, all atomically.
// Returned alerts are only the newly crossed tiers.
func (l *Ledger) RecordUsage(sessionID, agentID, model, opType string, tokensIn, tokensOut int, metadata map[string]string) (domain.Money, []BudgetAlert) {
	cost := l.pricing.CalculateCost(model, tokensIn, tokensOut)
	now := time.Now()

	rec := UsageRecord{
		SessionID: sessionID,
		AgentID:   agentID,
		Model:     model,
		OpType:    opType,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      cost,
		Timestamp: now,
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > l.maxRecords {
		// Evict the oldest window; accumulators are independent of the
		// retained records and survive eviction.
		l.records = l.records[len(l.records)-l.maxRecords:]
	}
	l.sessionTotals[sessionID] = l.sessionTotals[sessionID].Add(cost)
	l.globalTotal = l.globalTotal.Add(cost)
	total := l.sessionTotals[sessionID]
	b := l.ensureBudgetLocked(sessionID)
	alerts := b.checkThresholds(sessionID, total, l.thresholds, now)
	l.mu.Unlock()

	if l.persister != nil {
		if err := l.persister.SaveUsage(rec); err != nil {
			l.log.Warn().Err(err).Msg("usage record persistence failed")
		}
	}

	l.log.Info().
		Str("session", sessionID).
		Str("agent", agentID).
		Str("model", model).
		Str("cost", cost.String()).
		Str("session_total", total.String()).
		Msg("usage recorded")

	return cost, alerts
}

// SessionTotal returns the running total for a session.
func (l *Ledger) SessionTotal(sessionID string) domain.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionTotals[sessionID]
}

// BudgetFor returns (limit, remaining) for a session. Remaining is
// floored at zero. Sessions never seen get the default limit.
func (l *Ledger) BudgetFor(sessionID string) (domain.Money, domain.Money) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	limit := l.defaultLimit
	if b, ok := l.budgets[sessionID]; ok {
		limit = b.limit
	}
	return limit, limit.Sub(l.sessionTotals[sessionID])
}

// AgentBreakdown is per-agent usage within a session summary.
type AgentBreakdown struct {
	Cost       domain.Money `json:"cost"`
	Tokens     int          `json:"tokens"`
	Operations int          `json:"operations"`
	Models     []string     `json:"models"`
}

// SessionSummary aggregates a session's retained records plus its
// budget standing.
type SessionSummary struct {
	SessionID       string                    `json:"sessionId"`
	TotalCost       domain.Money              `json:"totalCost"`
	TotalTokens     int                       `json:"totalTokens"`
	OperationCount  int                       `json:"operationCount"`
	AgentsUsed      []string                  `json:"agentsUsed"`
	ModelsUsed      []string                  `json:"modelsUsed"`
	Breakdown       map[string]AgentBreakdown `json:"breakdown"`
	BudgetLimit     domain.Money              `json:"budgetLimit"`
	BudgetRemaining domain.Money              `json:"budgetRemaining"`
}

// GetSessionSummary scans the retained window for one session. TotalCost
// reports the running accumulator, which also covers evicted records.
func (l *Ledger) GetSessionSummary(sessionID string) SessionSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := SessionSummary{
		SessionID: sessionID,
		TotalCost: l.sessionTotals[sessionID],
		Breakdown: map[string]AgentBreakdown{},
	}

	agentSet := map[string]bool{}
	modelSet := map[string]bool{}
	agentModels := map[string]map[string]bool{}
	for _, r := range l.records {
		if r.SessionID != sessionID {
			continue
		}
		s.TotalTokens += r.TokensIn + r.TokensOut
		s.OperationCount++
		agentSet[r.AgentID] = true
		modelSet[r.Model] = true

		b := s.Breakdown[r.AgentID]
		b.Cost = b.Cost.Add(r.Cost)
		b.Tokens += r.TokensIn + r.TokensOut
		b.Operations++
		s.Breakdown[r.AgentID] = b
		if agentModels[r.AgentID] == nil {
			agentModels[r.AgentID] = map[string]bool{}
		}
		agentModels[r.AgentID][r.Model] = true
	}
	s.AgentsUsed = sortedKeys(agentSet)
	s.ModelsUsed = sortedKeys(modelSet)
	for agent, models := range agentModels {
		b := s.Breakdown[agent]
		b.Models = sortedKeys(models)
		s.Breakdown[agent] = b
	}

	limit := l.defaultLimit
	if b, ok := l.budgets[sessionID]; ok {
		limit = b.limit
	}
	s.BudgetLimit = limit
	s.BudgetRemaining = limit.Sub(s.TotalCost)
	return s
}

// ModelStat is per-model usage within the global summary.
type ModelStat struct {
	Cost       domain.Money `json:"cost"`
	Tokens     int          `json:"tokens"`
	Operations int          `json:"operations"`
}

// GlobalSummary aggregates every retained record.
type GlobalSummary struct {
	TotalCost       domain.Money         `json:"totalCost"`
	TotalTokens     int                  `json:"totalTokens"`
	TotalOperations int                  `json:"totalOperations"`
	ActiveSessions  int                  `json:"activeSessions"`
	ModelsUsed      []string             `json:"modelsUsed"`
	AgentsUsed      []string             `json:"agentsUsed"`
	ModelStats      map[string]ModelStat `json:"modelStats"`
	Start           time.Time            `json:"start,omitzero"`
	End             time.Time            `json:"end,omitzero"`
}

// GetGlobalSummary aggregates across all sessions. TotalCost is the
// global accumulator; token and operation counts cover the retained
// window.
func (l *Ledger) GetGlobalSummary() GlobalSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g := GlobalSummary{
		TotalCost:      l.globalTotal,
		ActiveSessions: len(l.sessionTotals),
		ModelStats:     map[string]ModelStat{},
	}
	agentSet := map[string]bool{}
	modelSet := map[string]bool{}
	for _, r := range l.records {
		g.TotalTokens += r.TokensIn + r.TokensOut
		g.TotalOperations++
		agentSet[r.AgentID] = true
		modelSet[r.Model] = true

		ms := g.ModelStats[r.Model]
		ms.Cost = ms.Cost.Add(r.Cost)
		ms.Tokens += r.TokensIn + r.TokensOut
		ms.Operations++
		g.ModelStats[r.Model] = ms

		if g.Start.IsZero() || r.Timestamp.Before(g.Start) {
			g.Start = r.Timestamp
		}
		if r.Timestamp.After(g.End) {
			g.End = r.Timestamp
		}
	}
	g.AgentsUsed = sortedKeys(agentSet)
	g.ModelsUsed = sortedKeys(modelSet)
	return g
}

// HourlyCost is one bucket in a cost trend.
type HourlyCost struct {
	Hour time.Time    `json:"hour"`
	Cost domain.Money `json:"cost"`
}

// CostTrend summarizes recent spend bucketed by hour.
type CostTrend struct {
	PeriodHours     int          `json:"periodHours"`
	TotalCost       domain.Money `json:"totalCost"`
	TotalOperations int          `json:"totalOperations"`
	Hourly          []HourlyCost `json:"hourly"`
	AvgCostPerHour  domain.Money `json:"avgCostPerHour"`
}

// GetCostTrends buckets the retained records from the last N hours.
func (l *Ledger) GetCostTrends(hours int) CostTrend {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	l.mu.RLock()
	defer l.mu.RUnlock()

	buckets := map[time.Time]domain.Money{}
	trend := CostTrend{PeriodHours: hours}
	for _, r := range l.records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		hour := r.Timestamp.Truncate(time.Hour)
		buckets[hour] = buckets[hour].Add(r.Cost)
		trend.TotalCost = trend.TotalCost.Add(r.Cost)
		trend.TotalOperations++
	}
	for hour, cost := range buckets {
		trend.Hourly = append(trend.Hourly, HourlyCost{Hour: hour, Cost: cost})
	}
	sort.Slice(trend.Hourly, func(i, j int) bool {
		return trend.Hourly[i].Hour.Before(trend.Hourly[j].Hour)
	})
	if n := len(buckets); n > 0 {
		trend.AvgCostPerHour = trend.TotalCost / domain.Money(n)
	}
	return trend
}

// Export returns a copy of retained records, optionally filtered to one
// session. sessionID == "" exports everything.
func (l *Ledger) Export(sessionID string) []UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]UsageRecord, 0, len(l.records))
	for _, r := range l.records {
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RecordCount reports how many records the window currently retains.
func (l *Ledger) RecordCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

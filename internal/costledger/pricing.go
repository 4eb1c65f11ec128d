package costledger

import (
	"sync"

	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// ModelPricing holds per-1k-token dollar rates for one model. Rates stay
// float64 because several sit below the ledger's $0.0001 money grain;
// only computed costs are quantized.
type ModelPricing struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	InputPer1K    float64 `json:"inputPer1k"`
	OutputPer1K   float64 `json:"outputPer1k"`
	ContextWindow int     `json:"contextWindow"`
	Notes         string  `json:"notes,omitempty"`
}

// fallbackCost is charged for models with no pricing entry. Unpriced
// models must never block task processing.
const fallbackCost = domain.Money(10) // $0.001

// PricingTable maps model names to rates. Safe for concurrent use.
type PricingTable struct {
	mu     sync.RWMutex
	models map[string]ModelPricing
	log    *logging.Logger
}

// NewPricingTable builds a table preloaded with the stock model rates.
func NewPricingTable(log *logging.Logger) *PricingTable {
	t := &PricingTable{
		models: map[string]ModelPricing{},
		log:    log.Sub("pricing"),
	}
	for _, p := range defaultPricing() {
		t.models[p.Model] = p
	}
	return t
}

func defaultPricing() []ModelPricing {
	return []ModelPricing{
		{Model: "gpt-4o", Provider: "openrouter", InputPer1K: 0.005, OutputPer1K: 0.015, ContextWindow: 128000, Notes: "GPT-4o via OpenRouter"},
		{Model: "gpt-4o-mini", Provider: "openrouter", InputPer1K: 0.00015, OutputPer1K: 0.0006, ContextWindow: 128000, Notes: "GPT-4o Mini via OpenRouter"},
		{Model: "gemini-2.5-flash", Provider: "openrouter", InputPer1K: 0.00075, OutputPer1K: 0.003, ContextWindow: 1000000, Notes: "Gemini 2.5 Flash via OpenRouter"},
		{Model: "claude-3.5-sonnet", Provider: "openrouter", InputPer1K: 0.003, OutputPer1K: 0.015, ContextWindow: 200000, Notes: "Claude 3.5 Sonnet via OpenRouter"},
		{Model: "gemma2:7b", Provider: "ollama", InputPer1K: 0.0001, OutputPer1K: 0.0001, ContextWindow: 8192, Notes: "local model, estimated compute cost"},
		{Model: "llama3.2:8b", Provider: "ollama", InputPer1K: 0.0001, OutputPer1K: 0.0001, ContextWindow: 128000, Notes: "local model, estimated compute cost"},
	}
}

// Get returns pricing for a model, if known.
func (t *PricingTable) Get(model string) (ModelPricing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.models[model]
	return p, ok
}

// Set adds or replaces pricing for a model.
func (t *PricingTable) Set(p ModelPricing) {
	t.mu.Lock()
	t.models[p.Model] = p
	t.mu.Unlock()
	t.log.Info().Str("model", p.Model).Msg("custom pricing added")
}

// All returns a copy of every pricing entry.
func (t *PricingTable) All() map[string]ModelPricing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]ModelPricing, len(t.models))
	for k, v := range t.models {
		out[k] = v
	}
	return out
}

// CalculateCost prices one usage event: (in/1000)*inputRate +
// (out/1000)*outputRate, rounded half up at four decimal places.
// Unknown models cost a flat minimal fallback, never an error.
func (t *PricingTable) CalculateCost(model string, tokensIn, tokensOut int) domain.Money {
	p, ok := t.Get(model)
	if !ok {
		t.log.Warn().Str("model", model).Msg("no pricing data for model")
		return fallbackCost
	}
	if tokensIn < 0 {
		tokensIn = 0
	}
	if tokensOut < 0 {
		tokensOut = 0
	}
	in := float64(tokensIn) / 1000 * p.InputPer1K
	out := float64(tokensOut) / 1000 * p.OutputPer1K
	return domain.MoneyFromFloat(in + out)
}

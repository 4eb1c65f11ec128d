// Package orchestrator coordinates sessions, agents, tools, retrieval,
// voice, and the cost ledger behind one facade. The gateway and CLI
// only talk to this package.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jarvislabs/jarvis/internal/agent"
	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/logging"
	"github.com/jarvislabs/jarvis/internal/plugin"
	"github.com/jarvislabs/jarvis/internal/retrieval"
	"github.com/jarvislabs/jarvis/internal/toolreg"
	"github.com/jarvislabs/jarvis/internal/voice"
)

// historyWindow bounds how many past turns feed the next completion.
const historyWindow = 10

var (
	ErrNotInitialized = errors.New("orchestrator is not initialized")
	ErrEmptyTask      = errors.New("task text is empty")
	ErrSessionPaused  = errors.New("session is paused")
	ErrVoiceDisabled  = errors.New("voice processing is not enabled")
	ErrNoAgents       = errors.New("no agents configured")
)

// Options wires the orchestrator's collaborators.
type Options struct {
	Config    *config.Config
	Pool      *agent.Pool
	Ledger    *costledger.Ledger
	Tools     *toolreg.Registry
	Retrieval *retrieval.Service // optional
	Voice     voice.Client       // optional
	Hooks     *hooks.Manager
	Plugins   *plugin.Registry // optional
	Log       *logging.Logger
}

// Orchestrator owns session state and the task pipeline.
type Orchestrator struct {
	cfg       *config.Config
	pool      *agent.Pool
	ledger    *costledger.Ledger
	tools     *toolreg.Registry
	retrieval *retrieval.Service
	voice     voice.Client
	hooks     *hooks.Manager
	plugins   *plugin.Registry
	log       *logging.Logger

	mu          sync.RWMutex
	initialized bool
	startedAt   time.Time
	sessions    map[string]*domain.Session
}

// New creates an orchestrator. Call Initialize before processing.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:       opts.Config,
		pool:      opts.Pool,
		ledger:    opts.Ledger,
		tools:     opts.Tools,
		retrieval: opts.Retrieval,
		voice:     opts.Voice,
		hooks:     opts.Hooks,
		plugins:   opts.Plugins,
		log:       opts.Log.Sub("orchestrator"),
	}
}

// Initialize brings up plugins and, when auto-install is configured,
// bootstraps the tool workbench. Initialization is idempotent.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.startedAt = time.Now()
	o.sessions = make(map[string]*domain.Session)
	o.mu.Unlock()

	if o.plugins != nil {
		if err := o.plugins.InitAll(ctx); err != nil {
			return fmt.Errorf("initializing plugins: %w", err)
		}
	}

	if o.tools != nil && o.cfg != nil && len(o.cfg.Tools.AutoInstall) > 0 {
		// Bootstrap failures are per-tool and non-fatal.
		installed := o.tools.Bootstrap(ctx, o.cfg.Tools.AutoInstall)
		if installed > 0 && o.hooks != nil {
			o.hooks.EmitAsync(ctx, hooks.EventToolInstalled, map[string]any{"count": installed})
		}
	}

	o.mu.Lock()
	o.initialized = true
	o.mu.Unlock()

	o.log.Info().Msg("orchestrator initialized")
	return nil
}

// Shutdown tears down plugins and stops accepting work.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.initialized = false
	o.mu.Unlock()

	if o.plugins != nil {
		o.plugins.CloseAll()
	}
	o.log.Info().Msg("orchestrator shut down")
	return nil
}

// Initialized reports whether the orchestrator accepts work.
func (o *Orchestrator) Initialized() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.initialized
}

// Session returns the session for the id, creating it on first use.
func (o *Orchestrator) Session(sessionID string) *domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionLocked(sessionID)
}

func (o *Orchestrator) sessionLocked(sessionID string) *domain.Session {
	if o.sessions == nil {
		o.sessions = make(map[string]*domain.Session)
	}
	sess, ok := o.sessions[sessionID]
	if !ok {
		sess = domain.NewSession(sessionID)
		o.sessions[sessionID] = sess
		if o.hooks != nil {
			o.hooks.EmitAsync(context.Background(), hooks.EventSessionStart, map[string]any{"sessionId": sessionID})
		}
	}
	return sess
}

// TaskOutcome is the result of one processed task plus any budget
// alerts the spend crossed.
type TaskOutcome struct {
	Result *domain.TaskResult
	Alerts []costledger.BudgetAlert
}

// ProcessTask runs one text task through agent selection, retrieval,
// completion, and cost accounting. Agent failures come back as an
// unsuccessful TaskResult, not an error; errors mean the request never
// reached an agent.
func (o *Orchestrator) ProcessTask(ctx context.Context, sessionID, text string) (*TaskOutcome, error) {
	if !o.Initialized() {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTask
	}

	o.mu.Lock()
	sess := o.sessionLocked(sessionID)
	if sess.Paused {
		o.mu.Unlock()
		return nil, ErrSessionPaused
	}
	history := historyMessages(sess)
	o.mu.Unlock()

	worker := o.pool.Select(text)
	if worker == nil {
		return nil, ErrNoAgents
	}

	if o.hooks != nil {
		o.hooks.EmitAsync(ctx, hooks.EventTaskReceived, map[string]any{
			"sessionId": sessionID,
			"agentId":   worker.Config().ID,
		})
	}

	var contextBlock string
	if o.retrieval != nil {
		contextBlock = o.retrieval.ContextBlock(ctx, text)
	}

	result, usage, err := worker.Run(ctx, text, history, contextBlock)
	if err != nil {
		o.log.Warn().Err(err).Str("session", sessionID).Msg("task processing failed")
		cfg := worker.Config()
		return &TaskOutcome{Result: &domain.TaskResult{
			Success:   false,
			Error:     err.Error(),
			AgentID:   cfg.ID,
			AgentName: cfg.Name,
			Model:     cfg.Model,
		}}, nil
	}

	cost, alerts := o.ledger.RecordUsage(
		sessionID, result.AgentID, result.Model, "completion",
		usage.InputTokens, usage.OutputTokens, nil,
	)
	result.Cost = cost
	worker.AddCost(cost)

	o.mu.Lock()
	sess.TotalCost = sess.TotalCost.Add(cost)
	sess.CurrentAgent = result.AgentID
	sess.Append(domain.HistoryEntry{
		Input:     text,
		Output:    result.Result,
		Timestamp: time.Now(),
	})
	o.mu.Unlock()

	if o.hooks != nil {
		o.hooks.EmitAsync(ctx, hooks.EventTaskCompleted, map[string]any{
			"sessionId": sessionID,
			"taskId":    result.TaskID,
			"agentId":   result.AgentID,
			"cost":      cost.String(),
		})
		for _, alert := range alerts {
			o.hooks.EmitAsync(ctx, hooks.EventBudgetAlert, map[string]any{
				"sessionId": alert.SessionID,
				"tier":      string(alert.Tier),
				"message":   alert.Message,
			})
		}
	}

	return &TaskOutcome{Result: result, Alerts: alerts}, nil
}

// VoiceOutcome is the result of one voice turn. A silent turn has an
// empty transcript and no task outcome. Degraded means synthesis
// failed and only text is available.
type VoiceOutcome struct {
	Transcript string
	Task       *TaskOutcome
	Audio      []byte
	Degraded   bool
}

// ProcessVoice transcribes audio, runs the transcript through the text
// pipeline, and synthesizes the response. Silence is a no-op, not an
// error.
func (o *Orchestrator) ProcessVoice(ctx context.Context, sessionID string, audio []byte, format string, sampleRate int) (*VoiceOutcome, error) {
	if !o.Initialized() {
		return nil, ErrNotInitialized
	}
	if o.voice == nil {
		return nil, ErrVoiceDisabled
	}

	transcript, err := o.voice.Transcribe(ctx, audio, format, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		o.log.Debug().Str("session", sessionID).Msg("empty transcript, skipping turn")
		return &VoiceOutcome{}, nil
	}

	outcome, err := o.ProcessTask(ctx, sessionID, transcript)
	if err != nil {
		return nil, err
	}

	vo := &VoiceOutcome{Transcript: transcript, Task: outcome}
	if outcome.Result.Success {
		speech, err := o.voice.Synthesize(ctx, outcome.Result.Result, "")
		if err != nil {
			o.log.Warn().Err(err).Str("session", sessionID).Msg("synthesis failed, degrading to text")
			vo.Degraded = true
		} else {
			vo.Audio = speech
		}
	}

	o.mu.Lock()
	if sess, ok := o.sessions[sessionID]; ok {
		sess.VoiceEnabled = true
		if n := len(sess.History); n > 0 {
			sess.History[n-1].Voice = true
		}
	}
	o.mu.Unlock()

	return vo, nil
}

// PauseSession stops task processing for a session until resumed.
func (o *Orchestrator) PauseSession(sessionID string) error {
	if !o.Initialized() {
		return ErrNotInitialized
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionLocked(sessionID).Paused = true
	return nil
}

// ResumeSession re-enables task processing.
func (o *Orchestrator) ResumeSession(sessionID string) error {
	if !o.Initialized() {
		return ErrNotInitialized
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionLocked(sessionID).Paused = false
	return nil
}

// ResetSession clears conversational state. Accumulated spend stays;
// a fresh conversation does not refund the budget.
func (o *Orchestrator) ResetSession(sessionID string) error {
	if !o.Initialized() {
		return ErrNotInitialized
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionLocked(sessionID).Reset()
	return nil
}

// EndSession drops session state entirely.
func (o *Orchestrator) EndSession(sessionID string) {
	o.mu.Lock()
	_, existed := o.sessions[sessionID]
	delete(o.sessions, sessionID)
	o.mu.Unlock()

	if existed && o.hooks != nil {
		o.hooks.EmitAsync(context.Background(), hooks.EventSessionEnd, map[string]any{"sessionId": sessionID})
	}
}

// SessionCount reports how many sessions currently hold state.
func (o *Orchestrator) SessionCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Ledger exposes the cost ledger for status and export surfaces.
func (o *Orchestrator) Ledger() *costledger.Ledger { return o.ledger }

// Pool exposes the agent roster.
func (o *Orchestrator) Pool() *agent.Pool { return o.pool }

// Tools exposes the workbench registry.
func (o *Orchestrator) Tools() *toolreg.Registry { return o.tools }

// historyMessages renders the newest session turns as alternating
// user/assistant messages.
func historyMessages(sess *domain.Session) []llm.Message {
	entries := sess.History
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}
	msgs := make([]llm.Message, 0, len(entries)*2)
	for _, e := range entries {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: e.Input},
			llm.Message{Role: llm.RoleAssistant, Content: e.Output},
		)
	}
	return msgs
}

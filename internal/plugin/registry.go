package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// Registry manages plugin lifecycle. Plugins initialize in
// registration order and close in reverse; only plugins that
// initialized successfully are closed.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	hooks   *hooks.Manager
	log     *logging.Logger
}

type entry struct {
	plugin      Plugin
	initialized bool
}

// NewRegistry creates a plugin registry.
func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{
		hooks: hm,
		log:   log.Sub("plugins"),
	}
}

// Register adds a plugin without initializing it. IDs must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.plugin.ID() == p.ID() {
			return fmt.Errorf("plugin already registered: %s", p.ID())
		}
	}
	r.entries = append(r.entries, &entry{plugin: p})

	r.log.Info().
		Str("id", p.ID()).
		Str("version", p.Version()).
		Msg("plugin registered")
	return nil
}

// InitAll initializes registered plugins in registration order. The
// first failure stops initialization and is returned.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		id := e.plugin.ID()
		api := API{
			Hooks: r.hooks,
			Log:   r.log.Sub(id),
		}
		if err := e.plugin.Init(ctx, api); err != nil {
			return fmt.Errorf("init plugin %s: %w", id, err)
		}
		e.initialized = true
		r.log.Debug().Str("id", id).Msg("plugin initialized")
	}
	return nil
}

// CloseAll shuts down initialized plugins in reverse order. Close
// errors are logged, not returned.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.initialized {
			continue
		}
		if err := e.plugin.Close(); err != nil {
			r.log.Error().Err(err).Str("id", e.plugin.ID()).Msg("plugin close error")
		}
		e.initialized = false
	}
}

// Get returns a plugin by ID, or nil.
func (r *Registry) Get(id string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.plugin.ID() == id {
			return e.plugin
		}
	}
	return nil
}

// List returns registered plugin IDs in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.plugin.ID())
	}
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// PluginInfo is summary data about one plugin.
type PluginInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Info returns summary information about all registered plugins.
func (r *Registry) Info() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, PluginInfo{
			ID:      e.plugin.ID(),
			Name:    e.plugin.Name(),
			Version: e.plugin.Version(),
		})
	}
	return infos
}

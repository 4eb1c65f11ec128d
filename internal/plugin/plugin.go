// Package plugin hosts optional extensions that observe the assistant
// platform through hooks.
package plugin

import (
	"context"

	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/logging"
)

// Plugin is an optional platform extension. Plugins subscribe to hook
// events during Init and release their resources in Close.
type Plugin interface {
	// ID returns a unique identifier, e.g. "usage-notifier".
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Version returns the plugin version string.
	Version() string

	// Init wires the plugin into the host. Budget alerts, task
	// completions, and tool installs arrive through api.Hooks.
	Init(ctx context.Context, api API) error

	// Close shuts the plugin down.
	Close() error
}

// API is what the host exposes to a plugin.
type API struct {
	Hooks *hooks.Manager
	Log   *logging.Logger
}

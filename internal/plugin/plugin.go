// Package plugin defines the in-process capability interface plugins
// implement, and a static registry holding whichever plugins were wired in
// at build time. Dynamic loading at runtime is out of scope; Reload always
// answers with ErrReloadUnsupported.
package plugin

import (
	"encoding/json"
	"errors"

	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/track"
)

// ErrReloadUnsupported is returned by Registry.Reload: this node has no
// dynamic plugin loader, only the plugins compiled into its binary.
var ErrReloadUnsupported = errors.New("plugin: dynamic reload is not supported")

// Plugin is the capability interface every plugin implements. Name,
// Version, Initialize, and Shutdown are obligatory; the remaining four
// hooks are optional and a plugin may leave them as no-ops.
type Plugin interface {
	Name() string
	Version() string
	Initialize() error
	Shutdown() error

	// OnTrackLoad may rewrite or veto a load result before it reaches the
	// control surface.
	OnTrackLoad(identifier string, result track.LoadResult) (track.LoadResult, error)

	// OnFiltersApply may reject or rewrite a filter chain patch.
	OnFiltersApply(guildID string, chain filters.FilterChain) (filters.FilterChain, error)

	// OnPlayerEvent observes a player event (trackStart, trackEnd, ...).
	OnPlayerEvent(guildID, eventType string, payload json.RawMessage) error

	// UpdateConfig applies a plugin-specific configuration blob.
	UpdateConfig(raw json.RawMessage) error
}

// Registry holds the plugins compiled into this binary.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry returns an empty registry. Use Register to add plugins
// before serving traffic.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds p to the registry, initializing it immediately.
func (r *Registry) Register(p Plugin) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	r.plugins[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Get returns the named plugin, if registered.
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns every registered plugin's name, in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Versions returns name->version for every registered plugin, for the
// plugins list of the /v4/info endpoint.
func (r *Registry) Versions() map[string]string {
	out := make(map[string]string, len(r.plugins))
	for name, p := range r.plugins {
		out[name] = p.Version()
	}
	return out
}

// Reload always fails: this node loads plugins only at process start.
func (r *Registry) Reload() error {
	return ErrReloadUnsupported
}

// Shutdown tears down every registered plugin, collecting the first error.
func (r *Registry) Shutdown() error {
	var first error
	for _, name := range r.order {
		if err := r.plugins[name].Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Package source defines the adapter boundary between an identifier (a
// URL, or a "prefix:query" search) and a resolved track.Track. This
// package supplies the interface, a generic HTTP adapter, and a YouTube
// adapter built on internal/platform/youtube; other platforms have no
// adapter.
package source

import (
	"context"

	"github.com/lavahost/soundnode/internal/track"
)

// Adapter resolves a load identifier into a track.LoadResult and reports
// whether it recognizes the identifier at all.
type Adapter interface {
	Name() string
	CanHandle(identifier string) bool
	Load(ctx context.Context, identifier string) (track.LoadResult, error)
}

// Registry dispatches an identifier to the first adapter claiming it.
type Registry struct {
	adapters []Adapter
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends adapter to the dispatch list; earlier registrations
// take priority when more than one adapter claims an identifier.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// Resolve finds the first adapter that claims identifier and loads it. If
// no adapter claims it, Resolve returns track.NewEmptyResult().
func (r *Registry) Resolve(ctx context.Context, identifier string) (track.LoadResult, error) {
	for _, a := range r.adapters {
		if a.CanHandle(identifier) {
			return a.Load(ctx, identifier)
		}
	}
	return track.NewEmptyResult(), nil
}

// Names lists every registered adapter, in dispatch priority order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Name()
	}
	return out
}

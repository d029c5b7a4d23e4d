package plugin

import (
	"encoding/json"
	"testing"

	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/track"
)

type noopPlugin struct {
	name           string
	shutdownCalled bool
}

func (p *noopPlugin) Name() string    { return p.name }
func (p *noopPlugin) Version() string { return "1.0.0" }
func (p *noopPlugin) Initialize() error { return nil }
func (p *noopPlugin) Shutdown() error {
	p.shutdownCalled = true
	return nil
}
func (p *noopPlugin) OnTrackLoad(identifier string, result track.LoadResult) (track.LoadResult, error) {
	return result, nil
}
func (p *noopPlugin) OnFiltersApply(guildID string, chain filters.FilterChain) (filters.FilterChain, error) {
	return chain, nil
}
func (p *noopPlugin) OnPlayerEvent(guildID, eventType string, payload json.RawMessage) error {
	return nil
}
func (p *noopPlugin) UpdateConfig(raw json.RawMessage) error { return nil }

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &noopPlugin{name: "example"}
	if err := r.Register(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := r.Get("example")
	if !ok || got.Name() != "example" {
		t.Fatalf("expected to retrieve registered plugin, got %v %v", got, ok)
	}
}

func TestReloadAlwaysUnsupported(t *testing.T) {
	r := NewRegistry()
	if err := r.Reload(); err != ErrReloadUnsupported {
		t.Fatalf("expected ErrReloadUnsupported, got %v", err)
	}
}

func TestShutdownCallsEveryPlugin(t *testing.T) {
	r := NewRegistry()
	p1 := &noopPlugin{name: "a"}
	p2 := &noopPlugin{name: "b"}
	r.Register(p1)
	r.Register(p2)
	if err := r.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p1.shutdownCalled || !p2.shutdownCalled {
		t.Fatal("expected both plugins to have Shutdown called")
	}
}

func TestVersionsReportsEveryPlugin(t *testing.T) {
	r := NewRegistry()
	r.Register(&noopPlugin{name: "a"})
	versions := r.Versions()
	if versions["a"] != "1.0.0" {
		t.Fatalf("expected version 1.0.0, got %v", versions)
	}
}

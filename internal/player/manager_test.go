package player

import (
	"context"
	"testing"
	"time"

	"github.com/lavahost/soundnode/internal/pipeline"
)

func noopFactory(label string) pipeline.Pipeline {
	return newFakePipeline()
}

func TestGetOrCreateRebindsExistingPlayer(t *testing.T) {
	m := NewManager(noopFactory)
	p1 := m.GetOrCreate("guild-1", "session-a")
	p2 := m.GetOrCreate("guild-1", "session-b")
	if p1 != p2 {
		t.Fatal("expected the same player instance for the same guild")
	}
	if p2.SessionID() != "session-b" {
		t.Fatalf("expected rebind to session-b, got %s", p2.SessionID())
	}
	if m.Len() != 1 {
		t.Fatalf("expected exactly one tracked player, got %d", m.Len())
	}
}

func TestRemoveForSessionOnlyAffectsMatchingGuilds(t *testing.T) {
	m := NewManager(noopFactory)
	m.GetOrCreate("guild-1", "session-a")
	m.GetOrCreate("guild-2", "session-b")

	removed := m.RemoveForSession("session-a")
	if len(removed) != 1 || removed[0] != "guild-1" {
		t.Fatalf("expected only guild-1 removed, got %v", removed)
	}
	if _, ok := m.Get("guild-1"); ok {
		t.Fatal("expected guild-1 player removed")
	}
	if _, ok := m.Get("guild-2"); !ok {
		t.Fatal("expected guild-2 player untouched")
	}
}

func TestRemoveEmitsCleanupEventWhenTrackWasCurrent(t *testing.T) {
	m := NewManager(noopFactory)
	p := m.GetOrCreate("guild-1", "session-a")
	if err := p.Play(context.Background(), mkTrack("a"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	<-m.Events() // drain trackStart before Remove's trackEnd

	m.Remove("guild-1")

	select {
	case e := <-m.Events():
		if e.Reason != pipeline.EndCleanup {
			t.Fatalf("expected cleanup reason, got %v", e.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a cleanup event")
	}
}

func TestRemoveWithNoCurrentTrackEmitsNoEvent(t *testing.T) {
	m := NewManager(noopFactory)
	m.GetOrCreate("guild-1", "session-a")
	m.Remove("guild-1")

	select {
	case e := <-m.Events():
		t.Fatalf("expected no event for a player with no current track, got %v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/pipeline"
	"github.com/lavahost/soundnode/internal/track"
)

// TestMain verifies no pipeline drain goroutine outlives its player.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePipeline is a no-subprocess stand-in for pipeline.Pipeline used to
// drive Player's state machine deterministically in tests.
type fakePipeline struct {
	output   chan []byte
	stuck    chan pipeline.Stuck
	stopOnce sync.Once
	paused   bool
	err      error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		output: make(chan []byte, 1),
		stuck:  make(chan pipeline.Stuck, 1),
	}
}

func (f *fakePipeline) Start(ctx context.Context, mediaURI string, chain filters.FilterChain, start time.Duration) error {
	return nil
}
func (f *fakePipeline) Output() <-chan []byte         { return f.output }
func (f *fakePipeline) StuckEvents() <-chan pipeline.Stuck { return f.stuck }
func (f *fakePipeline) Pause()                        { f.paused = true }
func (f *fakePipeline) Resume()                        { f.paused = false }
func (f *fakePipeline) Stop()                          { f.stopOnce.Do(func() { close(f.output) }) }
func (f *fakePipeline) Err() error                      { return f.err }

func newTestPlayer(t *testing.T, onEnd func(*fakePipeline)) (*Player, chan Event, *fakePipeline) {
	t.Helper()
	events := make(chan Event, 16)
	var fp *fakePipeline
	factory := func(label string) pipeline.Pipeline {
		fp = newFakePipeline()
		if onEnd != nil {
			go onEnd(fp)
		}
		return fp
	}
	p := New("guild-1", "session-1", factory, events)
	t.Cleanup(p.Destroy)
	return p, events, fp
}

func mkTrack(id string) track.Track {
	uri := "https://example.invalid/" + id
	return track.Track{Identifier: id, SourceName: "http", URI: &uri}
}

func TestPlayTransitionsToPlayingAndEmitsTrackStart(t *testing.T) {
	p, events, _ := newTestPlayer(t, func(fp *fakePipeline) {
		// leave output open; test only checks the immediate transition
	})
	if err := p.Play(context.Background(), mkTrack("a"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if got := p.State(); got != StatePlaying {
		t.Fatalf("expected StatePlaying, got %v", got)
	}
	select {
	case e := <-events:
		if e.Type != "trackStart" {
			t.Fatalf("expected trackStart, got %v", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trackStart event")
	}
}

func TestTrackEndAdvancesQueue(t *testing.T) {
	p, events, _ := newTestPlayer(t, func(fp *fakePipeline) {
		fp.Stop()
	})
	p.Queue().Append(mkTrack("next"))
	if err := p.Play(context.Background(), mkTrack("first"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	var sawEnd, sawNextStart bool
	deadline := time.After(2 * time.Second)
	for !sawNextStart {
		select {
		case e := <-events:
			if e.Type == "trackEnd" {
				sawEnd = true
			}
			if e.Type == "trackStart" && e.Track != nil && e.Track.Identifier == "next" {
				sawNextStart = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for queue advance (sawEnd=%v)", sawEnd)
		}
	}
	if p.Queue().Len() != 0 {
		t.Fatalf("expected queue drained, len=%d", p.Queue().Len())
	}
}

func TestPauseResumeTogglesState(t *testing.T) {
	p, _, _ := newTestPlayer(t, nil)
	if err := p.Play(context.Background(), mkTrack("a"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	p.Pause(true)
	if p.State() != StatePaused {
		t.Fatalf("expected StatePaused, got %v", p.State())
	}
	p.Pause(false)
	if p.State() != StatePlaying {
		t.Fatalf("expected StatePlaying, got %v", p.State())
	}
}

func TestVolumeClamped(t *testing.T) {
	p, _, _ := newTestPlayer(t, nil)
	p.SetVolume(-5)
	if got := p.Snapshot().Volume; got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	p.SetVolume(5000)
	if got := p.Snapshot().Volume; got != 1000 {
		t.Fatalf("expected clamp to 1000, got %d", got)
	}
}

func TestStopEndsPlaybackWithoutAdvancingQueue(t *testing.T) {
	p, _, _ := newTestPlayer(t, nil)
	p.Queue().Append(mkTrack("queued"))
	if err := p.Play(context.Background(), mkTrack("a"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	p.Stop()
	if p.State() != StateIdle {
		t.Fatalf("expected StateIdle after Stop, got %v", p.State())
	}
	if p.Queue().Len() != 1 {
		t.Fatalf("expected queue untouched by Stop, len=%d", p.Queue().Len())
	}
}

// firstEndsFactory builds a factory whose first pipeline ends immediately
// and whose later pipelines stay open, so a single end-of-stream can drive
// exactly one queue advancement.
func firstEndsFactory() PipelineFactory {
	var mu sync.Mutex
	count := 0
	return func(label string) pipeline.Pipeline {
		fp := newFakePipeline()
		mu.Lock()
		count++
		first := count == 1
		mu.Unlock()
		if first {
			fp.Stop()
		}
		return fp
	}
}

func TestRepeatTrackRestartsEndedTrack(t *testing.T) {
	events := make(chan Event, 16)
	p := New("guild-1", "session-1", firstEndsFactory(), events)
	t.Cleanup(p.Destroy)

	p.SetRepeat(true, false)
	p.Queue().Append(mkTrack("queued"))
	if err := p.Play(context.Background(), mkTrack("loop"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	var starts int
	deadline := time.After(2 * time.Second)
	for starts < 2 {
		select {
		case e := <-events:
			if e.Type == "trackStart" {
				if e.Track == nil || e.Track.Identifier != "loop" {
					t.Fatalf("expected the same track to restart, got %+v", e.Track)
				}
				starts++
			}
		case <-deadline:
			t.Fatalf("timed out waiting for restart (starts=%d)", starts)
		}
	}
	if p.Queue().Len() != 1 {
		t.Fatalf("expected queue untouched under repeat=track, len=%d", p.Queue().Len())
	}
}

func TestRepeatQueueRecyclesEndedTrack(t *testing.T) {
	events := make(chan Event, 16)
	p := New("guild-1", "session-1", firstEndsFactory(), events)
	t.Cleanup(p.Destroy)

	p.SetRepeat(false, true)
	p.Queue().Append(mkTrack("next"))
	if err := p.Play(context.Background(), mkTrack("first"), 0, nil, false); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == "trackStart" && e.Track != nil && e.Track.Identifier == "next" {
				if got := p.Queue().Snapshot(); len(got) != 1 || got[0].Identifier != "first" {
					t.Fatalf("expected ended track recycled to the back, queue=%v", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for queue advance under repeat=queue")
		}
	}
}

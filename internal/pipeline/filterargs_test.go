package pipeline

import (
	"strings"
	"testing"

	"github.com/lavahost/soundnode/internal/filters"
)

func TestBuildAudioFilterGraphEmptyChain(t *testing.T) {
	if got := buildAudioFilterGraph(filters.FilterChain{}); got != "" {
		t.Fatalf("expected empty graph for empty chain, got %q", got)
	}
}

func TestBuildAudioFilterGraphVolumeOnly(t *testing.T) {
	chain := filters.FilterChain{Volume: filters.Set(1.5)}
	got := buildAudioFilterGraph(chain)
	if !strings.Contains(got, "volume=1.5000") {
		t.Fatalf("expected volume stage, got %q", got)
	}
}

func TestBuildAudioFilterGraphOrdersStagesPerFilterOrder(t *testing.T) {
	chain := filters.FilterChain{
		Volume:  filters.Set(1.0),
		Tremolo: filters.Set(filters.TremoloFilter{Frequency: 4, Depth: 0.5}),
	}
	got := buildAudioFilterGraph(chain)
	volIdx := strings.Index(got, "volume=")
	tremIdx := strings.Index(got, "tremolo=")
	if volIdx < 0 || tremIdx < 0 || volIdx > tremIdx {
		t.Fatalf("expected volume before tremolo in graph %q", got)
	}
}

func TestEqBandFrequencyBounds(t *testing.T) {
	if f := eqBandFrequency(0); f != 25 {
		t.Fatalf("expected band 0 == 25Hz, got %v", f)
	}
	if f := eqBandFrequency(14); f != 16000 {
		t.Fatalf("expected band 14 == 16000Hz, got %v", f)
	}
	if f := eqBandFrequency(99); f != 1000 {
		t.Fatalf("expected out-of-range band to fall back to 1000Hz, got %v", f)
	}
}

func TestBuildArgsIncludesSeekAndFilterGraph(t *testing.T) {
	p := New(DefaultConfig(), "g1/s1")
	args := p.buildArgs("https://example.invalid/audio.webm", filters.FilterChain{Volume: filters.Set(0.5)}, 0)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-af volume=0.5000") {
		t.Fatalf("expected -af volume stage in args: %v", args)
	}
	if strings.Contains(joined, "-ss") {
		t.Fatalf("expected no -ss flag for zero start position: %v", args)
	}
}

// Package pipeline decodes a track's media URI through FFmpeg, applies the
// player's filter chain, and emits Opus frames on an output channel. It
// generalizes the fetch/decode/encode/pause loop the original bot used for
// Discord voice playback to a node that serves many concurrent players.
package pipeline

import (
	"context"
	"time"

	"github.com/lavahost/soundnode/internal/filters"
)

// EndReason explains why a pipeline stopped producing output.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Config controls decode/encode behavior independent of any one track.
type Config struct {
	SampleRate          int
	Channels            int
	OpusBitrate         int
	OutputBufferFrames  int
	TrackStuckThreshold time.Duration
	ReadBufferSize      int

	// Prebuffer is lavalink.server.bufferDurationMs: how much decoded
	// audio the pacing stage accumulates before it starts releasing
	// frames to the sink.
	Prebuffer time.Duration
	// MaxBuffer is lavalink.server.frameBufferDurationMs: the pacing
	// stage's high-water mark, past which it drops its oldest buffered
	// frames rather than growing without bound.
	MaxBuffer time.Duration
	// FrameDuration is the wall-clock duration each encoded frame
	// represents, used to pace output at real-time speed (20ms per Opus
	// frame at 48kHz).
	FrameDuration time.Duration
}

// DefaultConfig matches the node's default lavalink.server.* audio settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:          48000,
		Channels:            2,
		OpusBitrate:         128000,
		OutputBufferFrames:  30,
		TrackStuckThreshold: 10 * time.Second,
		ReadBufferSize:      4096,
		Prebuffer:           400 * time.Millisecond,
		MaxBuffer:           5000 * time.Millisecond,
		FrameDuration:       20 * time.Millisecond,
	}
}

// Stuck is sent on the StuckEvents channel when no output has been produced
// for Config.TrackStuckThreshold.
type Stuck struct {
	ThresholdMs int64
}

// Pipeline decodes one track at a time. A Pipeline instance is single-use:
// callers create a fresh one per track via Start.
type Pipeline interface {
	// Start launches the decode/encode chain for mediaURI, seeking to
	// startPosition first if it is non-zero.
	Start(ctx context.Context, mediaURI string, chain filters.FilterChain, startPosition time.Duration) error

	// Output streams encoded Opus frames. Closed when decoding ends,
	// whether normally, on error, or on Stop.
	Output() <-chan []byte

	// StuckEvents reports playback stalls while the pipeline is running.
	StuckEvents() <-chan Stuck

	// Pause suspends the decode process without losing its position.
	Pause()

	// Resume continues a paused decode process.
	Resume()

	// Stop terminates the decode process and returns once Output has
	// closed, so no further frames arrive after it returns. StuckEvents is
	// not closed.
	Stop()

	// Err returns the error that ended the pipeline, if any, after
	// Output has closed. Nil indicates a clean end-of-stream.
	Err() error
}

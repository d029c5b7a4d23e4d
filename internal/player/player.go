// Package player implements the per-guild player state machine: the
// current track, queue, filters, volume, and playback position, plus the
// pipeline driving audio decode for whichever track is current.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lavahost/soundnode/internal/filters"
	"github.com/lavahost/soundnode/internal/pipeline"
	"github.com/lavahost/soundnode/internal/queue"
	"github.com/lavahost/soundnode/internal/track"
)

// State is the player's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// VoiceState mirrors the voice server details the player needs to connect
// its decode pipeline's egress (token/endpoint/sessionId triple).
type VoiceState struct {
	Token     string
	Endpoint  string
	SessionID string
}

// PipelineFactory constructs a fresh decode pipeline for one track. Player
// calls it once per Play so a stuck or crashed ffmpeg process never leaks
// into the next track.
type PipelineFactory func(label string) pipeline.Pipeline

// Event is emitted by a Player as its state changes onto the Manager's
// shared Events channel; the control surface forwards these onto the
// session event stream.
type Event struct {
	GuildID   string
	Type      string // trackStart | trackEnd | trackStuck | trackException | playerUpdate
	Track     *track.Track
	Reason    pipeline.EndReason
	Position  time.Duration
	Error     string
	Timestamp time.Time
}

// Player is a single guild's playback state. All mutation happens under
// mu; long-running work (pipeline goroutines) runs outside of it.
type Player struct {
	GuildID   string
	sessionID string

	mu          sync.RWMutex
	state       State
	current     *track.Track
	queue       *queue.Queue
	filters     filters.FilterChain
	volume      int // 0-1000, Lavalink convention; 100 == unity gain
	paused      bool
	voice       VoiceState
	position    time.Duration
	positionAt  time.Time
	endTimeMs   *int64
	repeatTrack bool
	repeatQueue bool
	shuffle     bool

	pipelineFactory PipelineFactory
	activePipeline  pipeline.Pipeline
	cancel          context.CancelFunc
	// generation is bumped every time a new pipeline is started (Play,
	// Seek) or an in-flight one is torn down without a replacement
	// (Stop/Destroy/CheckEndBoundary). Each drain goroutine captures the
	// generation current when it was launched; if it no longer matches
	// the player's current generation by the time the pipeline's output
	// closes, that pipeline was superseded or explicitly stopped and
	// drain must not emit a second trackEnd or advance the queue.
	generation uint64

	events chan<- Event
	log    zerolog.Logger
}

// New constructs an idle player bound to guildID. events is the shared
// channel the owning Manager drains to fan events out to sessions.
func New(guildID, sessionID string, factory PipelineFactory, events chan<- Event) *Player {
	return &Player{
		GuildID:         guildID,
		sessionID:       sessionID,
		state:           StateIdle,
		queue:           queue.New(),
		volume:          100,
		pipelineFactory: factory,
		events:          events,
		log:             log.With().Str("component", "player").Str("guild", guildID).Logger(),
	}
}

// RebindSession points the player at a new session after a resume, without
// touching playback state.
func (p *Player) RebindSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionID = sessionID
}

func (p *Player) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Snapshot is an immutable copy of player state for a playerUpdate event or
// a GET /sessions/{id}/players/{guildId} response.
type Snapshot struct {
	GuildID   string
	State     State
	Track     *track.Track
	Position  time.Duration
	Paused    bool
	Volume    int
	Filters   filters.FilterChain
	Voice     VoiceState
	EndTimeMs *int64
}

func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		GuildID:   p.GuildID,
		State:     p.state,
		Track:     p.current,
		Position:  p.currentPositionLocked(),
		Paused:    p.paused,
		Volume:    p.volume,
		Filters:   p.filters,
		Voice:     p.voice,
		EndTimeMs: p.endTimeMs,
	}
}

// SetEndTime sets (or, passed nil, clears) the position boundary at which
// the current track is treated as having finished naturally. It does not
// itself check the boundary; CheckEndBoundary does that on the periodic
// tick.
func (p *Player) SetEndTime(ms *int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endTimeMs = ms
}

// CheckEndBoundary stops the current track with reason Finished, and
// advances the queue exactly as a natural end-of-stream would, once
// playback position has reached the configured end-time boundary. The
// control surface's periodic playerUpdate broadcaster calls it.
func (p *Player) CheckEndBoundary(ctx context.Context) {
	p.mu.Lock()
	if p.state != StatePlaying || p.endTimeMs == nil || p.current == nil {
		p.mu.Unlock()
		return
	}
	if p.currentPositionLocked() < time.Duration(*p.endTimeMs)*time.Millisecond {
		p.mu.Unlock()
		return
	}
	pl := p.activePipeline
	cancel := p.cancel
	t := *p.current
	p.activePipeline = nil
	p.cancel = nil
	p.generation++
	p.state = StateEnded
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pl != nil {
		pl.Stop()
	}
	p.emit(Event{Type: "trackEnd", Track: &t, Reason: pipeline.EndFinished, Timestamp: time.Now()})
	p.advance(ctx, t, pipeline.EndFinished)
}

func (p *Player) currentPositionLocked() time.Duration {
	if p.state != StatePlaying {
		return p.position
	}
	return p.position + time.Since(p.positionAt)
}

// SetVoice updates the voice server triple the pipeline should target.
func (p *Player) SetVoice(v VoiceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voice = v
}

// SetVolume clamps and stores the player's volume (0-1000).
func (p *Player) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 1000 {
		v = 1000
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	p.filters.Volume = filters.Set(float64(v) / 100.0)
}

// ApplyFilters merges a patch into the player's current filter chain.
func (p *Player) ApplyFilters(patch filters.FilterChain) filters.FilterChain {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = filters.Merge(p.filters, patch)
	return p.filters
}

// Queue exposes the pending-tracks queue for control-surface operations.
func (p *Player) Queue() *queue.Queue {
	return p.queue
}

// SetRepeat configures track/queue repeat policy.
func (p *Player) SetRepeat(track, queue bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeatTrack = track
	p.repeatQueue = queue
}

// SetShuffle toggles random queue-advancement order.
func (p *Player) SetShuffle(shuffle bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = shuffle
}

// RepeatState reports the player's current repeat/shuffle flags, for a
// queue or player snapshot view.
func (p *Player) RepeatState() (repeatTrack, repeatQueue, shuffle bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.repeatTrack, p.repeatQueue, p.shuffle
}

// Play starts decoding t from startPosition, replacing any currently
// playing track. The previous pipeline, if any, is stopped with reason
// EndReplaced. endTimeMs optionally bounds playback; nil leaves the
// track unbounded.
func (p *Player) Play(ctx context.Context, t track.Track, startPosition time.Duration, endTimeMs *int64, noReplace bool) error {
	p.mu.Lock()
	if noReplace && p.state == StatePlaying {
		p.mu.Unlock()
		return nil
	}
	prev := p.activePipeline
	prevCancel := p.cancel
	p.state = StateLoading
	p.current = &t
	p.position = startPosition
	p.positionAt = time.Now()
	p.endTimeMs = endTimeMs
	p.paused = false
	p.generation++
	myGen := p.generation
	chain := p.filters
	p.mu.Unlock()

	if prev != nil {
		prevCancel()
		prev.Stop()
		p.emit(Event{Type: "trackEnd", Reason: pipeline.EndReplaced, Timestamp: time.Now()})
	}

	var mediaURI string
	if t.URI != nil {
		mediaURI = *t.URI
	}

	pctx, cancel := context.WithCancel(ctx)
	pl := p.pipelineFactory(p.GuildID + "/" + p.sessionID)
	if err := pl.Start(pctx, mediaURI, chain, startPosition); err != nil {
		cancel()
		p.mu.Lock()
		p.state = StateEnded
		p.mu.Unlock()
		p.emit(Event{Type: "trackException", Track: &t, Error: err.Error(), Timestamp: time.Now()})
		return err
	}

	p.mu.Lock()
	p.activePipeline = pl
	p.cancel = cancel
	p.state = StatePlaying
	p.mu.Unlock()

	p.emit(Event{Type: "trackStart", Track: &t, Timestamp: time.Now()})
	go p.drain(pctx, pl, t, myGen)
	return nil
}

// drain consumes a pipeline's output until it ends, then advances the
// queue per repeat policy. gen is the generation captured when this
// pipeline was started; if the player has since moved to a new
// generation (superseded by Play/Seek, or torn down by Stop/Destroy/
// CheckEndBoundary), this drain's end-of-stream is stale and must not
// emit a second trackEnd or touch the queue.
func (p *Player) drain(ctx context.Context, pl pipeline.Pipeline, t track.Track, gen uint64) {
	for range pl.Output() {
		// Frames are discarded here: nothing else reads the pipeline's
		// output, and this node has no voice egress.
	}

	select {
	case stuck := <-pl.StuckEvents():
		p.emit(Event{Type: "trackStuck", Track: &t, Error: "", Timestamp: time.Now()})
		_ = stuck
	default:
	}

	reason := pipeline.EndFinished
	if err := pl.Err(); err != nil {
		reason = pipeline.EndLoadFailed
		p.emit(Event{Type: "trackException", Track: &t, Error: err.Error(), Timestamp: time.Now()})
	}

	p.mu.Lock()
	if p.activePipeline == pl {
		p.activePipeline = nil
	}
	superseded := p.generation != gen
	p.mu.Unlock()
	if superseded {
		return
	}

	p.emit(Event{Type: "trackEnd", Track: &t, Reason: reason, Timestamp: time.Now()})
	p.advance(ctx, t, reason)
}

// advance applies the queue advancement policy on Ended{may-start-next}:
// restart the current track under repeat=track, else pop (randomly under
// shuffle, otherwise from the front), recycling the previous track to the
// back under repeat=queue.
func (p *Player) advance(ctx context.Context, ended track.Track, reason pipeline.EndReason) {
	p.mu.Lock()
	repeatTrack := p.repeatTrack
	repeatQueue := p.repeatQueue
	shuffle := p.shuffle
	endTimeMs := p.endTimeMs
	p.mu.Unlock()

	mayStartNext := reason == pipeline.EndFinished || reason == pipeline.EndLoadFailed
	if !mayStartNext {
		p.mu.Lock()
		p.state = StateIdle
		p.current = nil
		p.mu.Unlock()
		return
	}

	if repeatTrack {
		p.Play(ctx, ended, 0, endTimeMs, false)
		return
	}

	var next track.Track
	var ok bool
	if shuffle {
		next, ok = p.queue.PopRandom()
	} else {
		next, ok = p.queue.PopFront()
	}
	if !ok {
		p.mu.Lock()
		p.state = StateIdle
		p.current = nil
		p.mu.Unlock()
		return
	}
	if repeatQueue {
		p.queue.PushBack(ended)
	}
	p.Play(ctx, next, 0, nil, false)
}

// Pause toggles decode suspension without losing position.
func (p *Player) Pause(paused bool) {
	p.mu.Lock()
	if p.paused == paused {
		p.mu.Unlock()
		return
	}
	if paused {
		p.position = p.currentPositionLocked()
		p.state = StatePaused
	} else {
		p.positionAt = time.Now()
		p.state = StatePlaying
	}
	p.paused = paused
	pl := p.activePipeline
	p.mu.Unlock()

	if pl == nil {
		return
	}
	if paused {
		pl.Pause()
	} else {
		pl.Resume()
	}
}

// Stop halts playback immediately without advancing the queue.
func (p *Player) Stop() {
	p.stopWithReason(pipeline.EndStopped)
}

// Destroy tears the player down for good: it stops any in-flight decode
// with reason Cleanup (emitted exactly once, and only if a track was
// actually current) and leaves the player Idle. Destroy does not block
// later calls on the player; callers remove it from the Manager's map
// themselves.
func (p *Player) Destroy() {
	p.stopWithReason(pipeline.EndCleanup)
}

func (p *Player) stopWithReason(reason pipeline.EndReason) {
	p.mu.Lock()
	pl := p.activePipeline
	cancel := p.cancel
	hadTrack := p.current != nil
	p.activePipeline = nil
	p.state = StateEnded
	p.current = nil
	p.endTimeMs = nil
	p.generation++
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pl != nil {
		pl.Stop()
	}
	if hadTrack {
		p.emit(Event{Type: "trackEnd", Reason: reason, Timestamp: time.Now()})
	}

	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()
}

// Seek repositions playback within the current track. The underlying
// pipeline is re-primed at the new offset, but unlike Play this never
// emits trackStart/trackEnd: the next playerUpdate simply reflects the
// new position.
func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	p.mu.Lock()
	cur := p.current
	if cur == nil {
		p.mu.Unlock()
		return nil
	}
	if position < 0 {
		position = 0
	}
	if cur.LengthMs > 0 {
		if max := time.Duration(cur.LengthMs) * time.Millisecond; position > max {
			position = max
		}
	}
	prev := p.activePipeline
	prevCancel := p.cancel
	chain := p.filters
	t := *cur
	p.position = position
	p.positionAt = time.Now()
	p.generation++
	myGen := p.generation
	p.mu.Unlock()

	if prev != nil {
		prevCancel()
		prev.Stop()
	}

	var mediaURI string
	if t.URI != nil {
		mediaURI = *t.URI
	}

	pctx, cancel := context.WithCancel(ctx)
	pl := p.pipelineFactory(p.GuildID + "/" + p.sessionID)
	if err := pl.Start(pctx, mediaURI, chain, position); err != nil {
		cancel()
		p.mu.Lock()
		p.state = StateEnded
		p.mu.Unlock()
		p.emit(Event{Type: "trackException", Track: &t, Error: err.Error(), Timestamp: time.Now()})
		return err
	}

	p.mu.Lock()
	p.activePipeline = pl
	p.cancel = cancel
	wasPaused := p.paused
	p.mu.Unlock()
	if wasPaused {
		pl.Pause()
	}

	go p.drain(pctx, pl, t, myGen)
	return nil
}

func (p *Player) emit(e Event) {
	e.GuildID = p.GuildID
	select {
	case p.events <- e:
	default:
		p.log.Warn().Str("type", e.Type).Msg("event channel full, dropping event")
	}
}

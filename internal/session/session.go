// Package session manages client sessions: one per connected WebSocket,
// each owning zero or more guild players and an optional resume grace
// period that survives a client disconnect.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventSink is whatever can receive a session's outbound event frames —
// normally a WebSocket connection wrapper. kind and guildID let the sink
// apply the slow-consumer policy per frame kind: playerUpdate frames may
// be coalesced or dropped, every other kind must be delivered or the
// connection declared broken.
type EventSink interface {
	Send(kind, guildID string, payload []byte) error
	Close() error
}

// maxBufferedEvents is the size at which a detached session's resume
// buffer starts evicting. playerUpdate entries are coalesced to at most
// one per guild and evicted first when the buffer is full; trackStart,
// trackEnd, trackException, and trackStuck are never dropped, so the
// buffer grows past this size when it holds no playerUpdate to evict.
const maxBufferedEvents = 256

// bufferedEvent is one outbound frame held for a detached session awaiting
// resume. kind is the frame's "op"/event discriminator ("playerUpdate",
// "event", "stats"); guildID is empty for frames with no single owning
// guild (e.g. stats).
type bufferedEvent struct {
	kind    string
	guildID string
	payload []byte
}

// Session is one client's connection plus its resume configuration.
type Session struct {
	ID string

	mu         sync.Mutex
	sink       EventSink
	resuming   bool
	timeout    time.Duration
	playerIDs  map[string]struct{}
	disconnect *time.Timer
	buffer     []bufferedEvent
	log        zerolog.Logger
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		timeout:   60 * time.Second,
		playerIDs: make(map[string]struct{}),
		log:       log.With().Str("component", "session").Str("session", id).Logger(),
	}
}

// Attach binds a live connection to the session, cancelling any pending
// resume-grace timer and flushing any frames buffered while detached.
func (s *Session) Attach(sink EventSink) {
	s.mu.Lock()
	if s.disconnect != nil {
		s.disconnect.Stop()
		s.disconnect = nil
	}
	s.sink = sink
	buffered := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	for _, e := range buffered {
		if err := sink.Send(e.kind, e.guildID, e.payload); err != nil {
			return
		}
	}
}

// Configure sets resuming and the resume timeout, per PATCH /v4/sessions/{id}.
func (s *Session) Configure(resuming bool, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resuming = resuming
	if timeout > 0 {
		s.timeout = timeout
	}
}

// Timeout reports the session's configured resume grace period.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// Publish sends a frame of kind (e.g. "playerUpdate", "event", "stats")
// owned by guildID (empty if the frame has no single owning guild). If the
// session has a live connection, the frame goes straight to the sink.
// Otherwise it is buffered for replay on the next Attach: playerUpdate
// frames may be coalesced to the latest one per guild and dropped under
// pressure, but every other kind is held until the next Attach.
func (s *Session) Publish(kind, guildID string, payload []byte) error {
	s.mu.Lock()
	sink := s.sink
	if sink == nil {
		s.bufferLocked(bufferedEvent{kind: kind, guildID: guildID, payload: payload})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return sink.Send(kind, guildID, payload)
}

// bufferLocked appends e to s.buffer, coalescing playerUpdate entries by
// guildID and evicting the oldest coalescible (playerUpdate) entry first
// if the buffer is at capacity. With no playerUpdate to evict, an incoming
// playerUpdate is dropped and any other kind is appended past capacity.
// Callers must hold s.mu.
func (s *Session) bufferLocked(e bufferedEvent) {
	if e.kind == "playerUpdate" {
		for i, existing := range s.buffer {
			if existing.kind == "playerUpdate" && existing.guildID == e.guildID {
				s.buffer[i] = e
				return
			}
		}
	}

	if len(s.buffer) >= maxBufferedEvents {
		evicted := false
		for i, existing := range s.buffer {
			if existing.kind == "playerUpdate" {
				s.buffer = append(s.buffer[:i:i], s.buffer[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			if e.kind == "playerUpdate" {
				return
			}
			s.log.Warn().Str("kind", e.kind).Msg("session event buffer over capacity, holding frame")
		}
	}
	s.buffer = append(s.buffer, e)
}

// TrackPlayer records that guildID has a player bound to this session.
func (s *Session) TrackPlayer(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerIDs[guildID] = struct{}{}
}

func (s *Session) UntrackPlayer(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.playerIDs, guildID)
}

// PlayerGuildIDs returns the guild IDs this session currently owns.
func (s *Session) PlayerGuildIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.playerIDs))
	for id := range s.playerIDs {
		out = append(out, id)
	}
	return out
}

// Detach drops the live sink. If the session is configured to resume, it
// starts a grace timer calling onExpire if no reconnect arrives in time.
func (s *Session) Detach(onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = nil
	if !s.resuming {
		if onExpire != nil {
			go onExpire()
		}
		return
	}
	s.log.Info().Dur("timeout", s.timeout).Msg("session disconnected, entering resume grace period")
	s.disconnect = time.AfterFunc(s.timeout, func() {
		s.log.Info().Msg("resume grace period expired")
		if onExpire != nil {
			onExpire()
		}
	})
}

// IsResuming reports whether the session survives disconnects.
func (s *Session) IsResuming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resuming
}

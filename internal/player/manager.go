package player

import (
	"hash/fnv"
	"sync"
)

// shardCount sizes the guild→player map's shard array. Guild IDs hash
// uniformly, so 16 shards keeps mutation contention negligible for any
// realistic player count.
const shardCount = 16

// shard is one slice of the guild→player map with its own lock, so
// mutations contend only with other guilds hashing to the same shard.
type shard struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// Manager owns every guild's Player, keyed by guild ID across a sharded
// map. A guild has at most one Player across the whole node regardless of
// which session created it; resuming rebinds an existing Player to a new
// session ID instead of creating a second one.
type Manager struct {
	shards [shardCount]*shard

	factory PipelineFactory
	events  chan Event
}

// NewManager constructs an empty Manager. factory is used to build a
// fresh decode pipeline for each Play call across every player.
func NewManager(factory PipelineFactory) *Manager {
	m := &Manager{
		factory: factory,
		events:  make(chan Event, 256),
	}
	for i := range m.shards {
		m.shards[i] = &shard{players: make(map[string]*Player)}
	}
	return m
}

func (m *Manager) shardFor(guildID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(guildID))
	return m.shards[h.Sum32()%shardCount]
}

// Events returns the channel every player's state-change events are
// published to. Callers should keep draining it.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// GetOrCreate returns the existing player for guildID, rebinding it to
// sessionID, or creates a fresh one.
func (m *Manager) GetOrCreate(guildID, sessionID string) *Player {
	s := m.shardFor(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[guildID]; ok {
		p.RebindSession(sessionID)
		return p
	}
	p := New(guildID, sessionID, m.factory, m.events)
	s.players[guildID] = p
	return p
}

// Get returns the player for guildID, if one exists.
func (m *Manager) Get(guildID string) (*Player, bool) {
	s := m.shardFor(guildID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[guildID]
	return p, ok
}

// Remove stops and forgets guildID's player.
func (m *Manager) Remove(guildID string) {
	s := m.shardFor(guildID)
	s.mu.Lock()
	p, ok := s.players[guildID]
	delete(s.players, guildID)
	s.mu.Unlock()
	if ok {
		p.Destroy()
	}
}

// RemoveForSession stops and forgets every player currently bound to
// sessionID, used when a session's resume grace period expires. Returns
// the guild IDs that were removed.
func (m *Manager) RemoveForSession(sessionID string) []string {
	var matched []*Player
	var guildIDs []string
	for _, s := range m.shards {
		s.mu.Lock()
		for guildID, p := range s.players {
			if p.SessionID() == sessionID {
				matched = append(matched, p)
				guildIDs = append(guildIDs, guildID)
				delete(s.players, guildID)
			}
		}
		s.mu.Unlock()
	}

	for _, p := range matched {
		p.Destroy()
	}
	return guildIDs
}

// Len reports how many guilds currently have a player.
func (m *Manager) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.players)
		s.mu.RUnlock()
	}
	return n
}

// All returns a snapshot of every player, for broadcast ticks.
func (m *Manager) All() []*Player {
	var out []*Player
	for _, s := range m.shards {
		s.mu.RLock()
		for _, p := range s.players {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	return out
}

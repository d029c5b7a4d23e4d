// Package queue implements the ordered, finite pending-tracks list attached
// to a player.
package queue

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/lavahost/soundnode/internal/track"
)

// RepeatMode controls how queue advancement behaves once a track ends.
type RepeatMode string

const (
	RepeatOff   RepeatMode = "none"
	RepeatTrack RepeatMode = "track"
	RepeatQueue RepeatMode = "queue"
)

// ErrIndexOutOfRange is returned by operations addressing a queue position
// that does not exist.
var ErrIndexOutOfRange = errors.New("queue: index out of range")

// Queue is an ordered, finite sequence of tracks. It never contains the
// player's current track — callers are responsible for popping a track
// off the queue before making it current.
//
// A Queue is shared between control-plane handlers (which mutate it under
// no lock of their own) and a player's background advance() goroutine, so
// it guards its own slice with mu rather than relying on an external lock.
type Queue struct {
	mu     sync.Mutex
	tracks []track.Track
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Append adds tracks to the back of the queue and returns how many were
// added.
func (q *Queue) Append(tracks ...track.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, tracks...)
	return len(tracks)
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Snapshot returns a copy of the queue's contents in order.
func (q *Queue) Snapshot() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]track.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// RemoveAt removes and returns the track at index.
func (q *Queue) RemoveAt(index int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.tracks) {
		return track.Track{}, ErrIndexOutOfRange
	}
	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index:index], q.tracks[index+1:]...)
	return removed, nil
}

// Clear empties the queue and returns how many tracks were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.tracks)
	q.tracks = nil
	return n
}

// Move relocates the track at from to index to, shifting the tracks
// between the two positions.
func (q *Queue) Move(from, to int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if from < 0 || from >= len(q.tracks) {
		return track.Track{}, ErrIndexOutOfRange
	}
	if to < 0 || to >= len(q.tracks) {
		return track.Track{}, ErrIndexOutOfRange
	}
	moved := q.tracks[from]
	q.tracks = append(q.tracks[:from:from], q.tracks[from+1:]...)

	tail := make([]track.Track, len(q.tracks)-to)
	copy(tail, q.tracks[to:])
	q.tracks = append(q.tracks[:to:to], append([]track.Track{moved}, tail...)...)
	return moved, nil
}

// Shuffle randomizes queue order in place and returns the number of
// tracks shuffled. The multiset of tracks is preserved.
func (q *Queue) Shuffle() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
	return len(q.tracks)
}

// PopFront removes and returns the first queued track.
func (q *Queue) PopFront() (track.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return track.Track{}, false
	}
	front := q.tracks[0]
	q.tracks = q.tracks[1:]
	return front, true
}

// PopRandom removes and returns a uniformly-random queued track.
func (q *Queue) PopRandom() (track.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return track.Track{}, false
	}
	i := rand.Intn(len(q.tracks))
	t := q.tracks[i]
	q.tracks = append(q.tracks[:i:i], q.tracks[i+1:]...)
	return t, true
}

// PushBack appends a single track to the end of the queue (used when
// repeat==queue recycles the previous current track).
func (q *Queue) PushBack(t track.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, t)
}

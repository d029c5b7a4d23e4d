package queue

import (
	"testing"

	"github.com/lavahost/soundnode/internal/track"
)

func mkTrack(id string) track.Track {
	return track.Track{Identifier: id, SourceName: "http"}
}

func TestAppendRemoveLast(t *testing.T) {
	q := New()
	q.Append(mkTrack("a"), mkTrack("b"), mkTrack("c"))
	removed, err := q.RemoveAt(q.Len() - 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Identifier != "c" {
		t.Fatalf("expected to remove last-added track, got %s", removed.Identifier)
	}
}

func TestShufflePreservesMultiset(t *testing.T) {
	q := New()
	q.Append(mkTrack("a"), mkTrack("b"), mkTrack("c"), mkTrack("d"))
	before := map[string]int{}
	for _, tr := range q.Snapshot() {
		before[tr.Identifier]++
	}
	q.Shuffle()
	after := map[string]int{}
	for _, tr := range q.Snapshot() {
		after[tr.Identifier]++
	}
	if len(before) != len(after) {
		t.Fatalf("shuffle changed multiset size")
	}
	for k, v := range before {
		if after[k] != v {
			t.Fatalf("shuffle changed multiset: %v vs %v", before, after)
		}
	}
}

func TestMoveReordersQueue(t *testing.T) {
	q := New()
	q.Append(mkTrack("e1"), mkTrack("e2"), mkTrack("e3"))
	if _, err := q.Move(0, 2); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	got := q.Snapshot()
	want := []string{"e2", "e3", "e1"}
	for i, tr := range got {
		if tr.Identifier != want[i] {
			t.Fatalf("move order mismatch: got %v want %v", identifiers(got), want)
		}
	}
}

func identifiers(tracks []track.Track) []string {
	out := make([]string, len(tracks))
	for i, tr := range tracks {
		out[i] = tr.Identifier
	}
	return out
}

func TestQueueAddRemoveMoveClearScenario(t *testing.T) {
	q := New()
	added := q.Append(mkTrack("E1"), mkTrack("E2"), mkTrack("E3"))
	if added != 3 {
		t.Fatalf("expected 3 added, got %d", added)
	}
	if _, err := q.Move(0, 2); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if got := identifiers(q.Snapshot()); got[0] != "E2" || got[1] != "E3" || got[2] != "E1" {
		t.Fatalf("unexpected order after move: %v", got)
	}
	removed, err := q.RemoveAt(1)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed.Identifier != "E3" {
		t.Fatalf("expected to remove E3, got %s", removed.Identifier)
	}
	if cleared := q.Clear(); cleared != 2 {
		t.Fatalf("expected cleared count 2, got %d", cleared)
	}
}

func TestRemoveAtOutOfRange(t *testing.T) {
	q := New()
	q.Append(mkTrack("a"))
	if _, err := q.RemoveAt(5); err != ErrIndexOutOfRange {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestPopFrontAndPopRandomEmpty(t *testing.T) {
	q := New()
	if _, ok := q.PopFront(); ok {
		t.Fatal("expected false from PopFront on empty queue")
	}
	if _, ok := q.PopRandom(); ok {
		t.Fatal("expected false from PopRandom on empty queue")
	}
}

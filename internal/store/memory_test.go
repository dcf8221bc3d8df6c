package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemorySetGetMerge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "games/g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.Set(ctx, "games/g1", map[string]any{"status": "lobby", "playersCount": 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.Merge(ctx, "games/g1", map[string]any{"status": "running"}); err != nil {
		t.Fatal(err)
	}

	doc, err := m.Get(ctx, "games/g1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["status"] != "running" {
		t.Fatalf("merge lost: status = %v", doc.Data["status"])
	}
	if doc.Data["playersCount"] != 1 {
		t.Fatalf("merge clobbered sibling field: %v", doc.Data["playersCount"])
	}

	// Mutating a returned snapshot must not touch the store.
	doc.Data["status"] = "hacked"
	doc2, _ := m.Get(ctx, "games/g1")
	if doc2.Data["status"] != "running" {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestMemoryIncrementAndServerTimestamp(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	if err := m.Set(ctx, "games/g1", map[string]any{"playersCount": 1, "createdAt": ServerTimestamp{}}); err != nil {
		t.Fatal(err)
	}
	if err := m.Merge(ctx, "games/g1", map[string]any{"playersCount": Increment{By: 1}}); err != nil {
		t.Fatal(err)
	}

	doc, _ := m.Get(ctx, "games/g1")
	if doc.Data["playersCount"] != int64(2) {
		t.Fatalf("increment = %v", doc.Data["playersCount"])
	}
	if !doc.Data["createdAt"].(time.Time).Equal(now) {
		t.Fatalf("server timestamp = %v", doc.Data["createdAt"])
	}
}

func TestMemoryBatchAtomicPrecondition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "games/g1/rounds/1", map[string]any{"resolved": false}); err != nil {
		t.Fatal(err)
	}

	batch := NewBatch().
		MergeIf("games/g1/rounds/1", map[string]any{"resolved": true, "correctPosition": 2}, "resolved", false).
		Set("games/g1/rounds/2", map[string]any{"resolved": false}).
		Merge("games/g1", map[string]any{"currentRound": 2})
	if err := m.Commit(ctx, batch); err != nil {
		t.Fatalf("first resolution batch failed: %v", err)
	}

	// Replaying the same batch must fail as a unit: the guard no longer holds
	// and none of the other writes may apply.
	replay := NewBatch().
		MergeIf("games/g1/rounds/1", map[string]any{"resolved": true, "correctPosition": 5}, "resolved", false).
		Merge("games/g1", map[string]any{"currentRound": 99})
	if err := m.Commit(ctx, replay); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	round, _ := m.Get(ctx, "games/g1/rounds/1")
	if round.Data["correctPosition"] != 2 {
		t.Fatalf("replay mutated resolved round: %v", round.Data["correctPosition"])
	}
	game, _ := m.Get(ctx, "games/g1")
	if game.Data["currentRound"] != 2 {
		t.Fatalf("aborted batch applied partially: currentRound = %v", game.Data["currentRound"])
	}
}

func TestMemoryQueryEqualityWithLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_ = m.Set(ctx, "games/g1", map[string]any{"mode": "battle_royale", "status": "lobby"})
	_ = m.Set(ctx, "games/g2", map[string]any{"mode": "battle_royale", "status": "running"})
	_ = m.Set(ctx, "games/g3", map[string]any{"mode": "private", "status": "lobby"})
	_ = m.Set(ctx, "games/g4", map[string]any{"mode": "battle_royale", "status": "lobby"})

	docs, err := m.Query(ctx, "games", []Filter{
		{Field: "mode", Equals: "battle_royale"},
		{Field: "status", Equals: "lobby"},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(docs))
	}

	docs, err = m.Query(ctx, "games", []Filter{{Field: "mode", Equals: "battle_royale"}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("limit ignored: got %d docs", len(docs))
	}
}

func TestMemoryWatchDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	_ = m.Set(ctx, "games/g1", map[string]any{"status": "lobby"})

	ch, err := m.Watch(ctx, "games/g1")
	if err != nil {
		t.Fatal(err)
	}

	first := <-ch
	if first.Type != EventAdded || first.Doc.Data["status"] != "lobby" {
		t.Fatalf("initial snapshot = %+v", first)
	}

	_ = m.Merge(ctx, "games/g1", map[string]any{"status": "running"})
	second := <-ch
	if second.Type != EventModified || second.Doc.Data["status"] != "running" {
		t.Fatalf("update event = %+v", second)
	}

	// Unrelated documents must not be delivered.
	_ = m.Set(ctx, "games/g2", map[string]any{"status": "lobby"})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other document: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryWatchCollection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	_ = m.Set(ctx, "games/g1/players/p1", map[string]any{"displayName": "one"})

	ch, err := m.Watch(ctx, "games/g1/players")
	if err != nil {
		t.Fatal(err)
	}
	first := <-ch
	if first.Type != EventAdded || first.Doc.ID() != "p1" {
		t.Fatalf("initial snapshot = %+v", first)
	}

	_ = m.Set(ctx, "games/g1/players/p2", map[string]any{"displayName": "two"})
	second := <-ch
	if second.Doc.ID() != "p2" {
		t.Fatalf("expected p2 event, got %+v", second)
	}
}

func TestMemoryWatchSnapshotLargerThanBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()

	total := watchBuffer + 50
	for i := 0; i < total; i++ {
		_ = m.Set(ctx, fmt.Sprintf("games/g1/submissions/1_p%04d", i), map[string]any{"positionIndex": i})
	}

	watched := make(chan (<-chan Event), 1)
	go func() {
		ch, err := m.Watch(ctx, "games/g1/submissions")
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
		watched <- ch
	}()
	var ch <-chan Event
	select {
	case ch = <-watched:
	case <-time.After(time.Second):
		t.Fatal("Watch blocked delivering the initial snapshot")
	}

	// The store must stay usable while the snapshot is still undrained.
	if _, err := m.Get(ctx, "games/g1/submissions/1_p0000"); err != nil {
		t.Fatalf("Get during undrained snapshot: %v", err)
	}

	for i := 0; i < total; i++ {
		select {
		case event := <-ch:
			if event.Type != EventAdded {
				t.Fatalf("snapshot event %d = %v, want added", i, event.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("snapshot stopped after %d of %d documents", i, total)
		}
	}

	_ = m.Set(ctx, "games/g1/submissions/1_p9999", map[string]any{"positionIndex": 0})
	select {
	case event := <-ch:
		if event.Doc.ID() != "1_p9999" {
			t.Fatalf("update after snapshot = %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered after the snapshot")
	}
}

func TestMemoryWatchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()

	ch, err := m.Watch(ctx, "games/g1")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel was not closed after cancellation")
		}
	}
}

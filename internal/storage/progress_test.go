package storage

import (
	"context"
	"testing"
	"time"
)

func TestLevelProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh, err := store.GetLevel(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if fresh.XP != 0 || fresh.Level != 0 {
		t.Fatalf("expected fresh record, got %+v", fresh)
	}

	progress := LevelProgress{GuildID: "g1", UserID: "u1", XP: 120, Level: 1, Messages: 9, LastMessageAt: time.Now()}
	if err := store.UpsertLevel(ctx, progress); err != nil {
		t.Fatalf("upsert level: %v", err)
	}
	progress.XP = 140
	progress.Messages = 10
	if err := store.UpsertLevel(ctx, progress); err != nil {
		t.Fatalf("update level: %v", err)
	}

	got, err := store.GetLevel(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if got.XP != 140 || got.Messages != 10 {
		t.Fatalf("unexpected progress: %+v", got)
	}
}

func TestTopLevels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, p := range []LevelProgress{
		{GuildID: "g1", UserID: "u1", XP: 50, Level: 0, Messages: 4, LastMessageAt: now},
		{GuildID: "g1", UserID: "u2", XP: 300, Level: 2, Messages: 20, LastMessageAt: now},
		{GuildID: "g1", UserID: "u3", XP: 120, Level: 1, Messages: 8, LastMessageAt: now},
		{GuildID: "g2", UserID: "u9", XP: 999, Level: 4, Messages: 70, LastMessageAt: now},
	} {
		if err := store.UpsertLevel(ctx, p); err != nil {
			t.Fatalf("upsert level: %v", err)
		}
	}

	top, err := store.TopLevels(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("top levels: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u2" || top[1].UserID != "u3" {
		t.Fatalf("unexpected leaderboard: %+v", top)
	}
}

func TestReputation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	points, err := store.GetReputation(ctx, "g1", "u2")
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if points != 0 {
		t.Fatalf("expected 0 points, got %d", points)
	}

	points, err = store.AddReputation(ctx, "g1", "u1", "u2", now)
	if err != nil {
		t.Fatalf("add reputation: %v", err)
	}
	if points != 1 {
		t.Fatalf("expected 1 point, got %d", points)
	}
	points, err = store.AddReputation(ctx, "g1", "u3", "u2", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("add reputation: %v", err)
	}
	if points != 2 {
		t.Fatalf("expected 2 points, got %d", points)
	}

	last, err := store.LastRepGiven(ctx, "g1", "u1", "u2")
	if err != nil {
		t.Fatalf("last rep given: %v", err)
	}
	if !last.Equal(now) {
		t.Fatalf("expected %v, got %v", now, last)
	}
	last, err = store.LastRepGiven(ctx, "g1", "u2", "u1")
	if err != nil {
		t.Fatalf("last rep given: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time, got %v", last)
	}

	count, err := store.CountRepGivenSince(ctx, "g1", "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count rep given: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
	count, err = store.CountRepGivenSince(ctx, "g1", "u1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("count rep given: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 events, got %d", count)
	}

	topPoints, order, err := store.TopReputation(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("top reputation: %v", err)
	}
	if len(order) != 1 || order[0] != "u2" || topPoints["u2"] != 2 {
		t.Fatalf("unexpected leaderboard: %v %v", order, topPoints)
	}
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestPoller(t *testing.T) (*Poller, *storage.Store, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	poller := New(store, zap.NewNop(), config.SchedulerConfig{PollSeconds: 30})
	clock := newFakeClock()
	poller.WithClock(clock)
	return poller, store, clock
}

func TestRunOnceFiresDueActions(t *testing.T) {
	poller, store, clock := newTestPoller(t)
	ctx := context.Background()
	now := clock.Now()

	oneShot, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionReminder, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("create one-shot: %v", err)
	}
	recurringTarget := now.Add(-time.Minute).Truncate(time.Second)
	recurring, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionReminder, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: recurringTarget, Repeat: time.Hour})
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}
	if _, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionReminder, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create future: %v", err)
	}

	var mu sync.Mutex
	fired := make(map[int64]int)
	poller.Register(storage.ActionReminder, func(ctx context.Context, action storage.ScheduledAction) error {
		mu.Lock()
		defer mu.Unlock()
		fired[action.ID]++
		return nil
	})

	poller.runOnce(ctx)

	if fired[oneShot] != 1 || fired[recurring] != 1 {
		t.Fatalf("expected both due actions fired once, got %v", fired)
	}
	if len(fired) != 2 {
		t.Fatalf("expected future action untouched, got %v", fired)
	}

	// The one-shot is done; the recurring one advanced by exactly one
	// interval from its stored target.
	got, err := store.GetAction(ctx, oneShot)
	if err != nil {
		t.Fatalf("get one-shot: %v", err)
	}
	if got.Active {
		t.Fatal("expected one-shot deactivated")
	}
	got, err = store.GetAction(ctx, recurring)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if !got.Active {
		t.Fatal("expected recurring still active")
	}
	if !got.TargetTime.Equal(recurringTarget.Add(time.Hour)) {
		t.Fatalf("expected target %v, got %v", recurringTarget.Add(time.Hour), got.TargetTime)
	}
}

func TestHandlerFailureRetriesNextPass(t *testing.T) {
	poller, store, clock := newTestPoller(t)
	ctx := context.Background()
	target := clock.Now().Add(-time.Minute).Truncate(time.Second)

	id, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionPoll, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: target})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}

	calls := 0
	poller.Register(storage.ActionPoll, func(ctx context.Context, action storage.ScheduledAction) error {
		calls++
		if calls == 1 {
			return errors.New("channel unavailable")
		}
		return nil
	})

	// First pass fails; the row must be exactly as it was.
	poller.runOnce(ctx)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	got, err := store.GetAction(ctx, id)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if !got.Active || !got.TargetTime.Equal(target) {
		t.Fatalf("expected untouched row, got %+v", got)
	}

	// Next pass retries and completes.
	poller.runOnce(ctx)
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	got, err = store.GetAction(ctx, id)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Active {
		t.Fatal("expected action completed on retry")
	}
}

func TestFailureIsolatedPerRow(t *testing.T) {
	poller, store, clock := newTestPoller(t)
	ctx := context.Background()
	now := clock.Now()

	bad, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionPoll, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: now.Add(-2 * time.Minute)})
	if err != nil {
		t.Fatalf("create bad: %v", err)
	}
	good, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionReminder, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("create good: %v", err)
	}

	poller.Register(storage.ActionPoll, func(ctx context.Context, action storage.ScheduledAction) error {
		return errors.New("boom")
	})
	reminderFired := false
	poller.Register(storage.ActionReminder, func(ctx context.Context, action storage.ScheduledAction) error {
		reminderFired = true
		return nil
	})

	poller.runOnce(ctx)

	if !reminderFired {
		t.Fatal("expected reminder fired despite poll failure")
	}
	gotBad, err := store.GetAction(ctx, bad)
	if err != nil {
		t.Fatalf("get bad: %v", err)
	}
	if !gotBad.Active {
		t.Fatal("expected failed action still active")
	}
	gotGood, err := store.GetAction(ctx, good)
	if err != nil {
		t.Fatalf("get good: %v", err)
	}
	if gotGood.Active {
		t.Fatal("expected good action completed")
	}
}

func TestOverdueRecurringCatchesUpOnePassAtATime(t *testing.T) {
	poller, store, clock := newTestPoller(t)
	ctx := context.Background()
	target := clock.Now().Add(-150 * time.Second).Truncate(time.Second)

	id, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: storage.ActionReminder, GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: target, Repeat: time.Minute})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}

	calls := 0
	poller.Register(storage.ActionReminder, func(ctx context.Context, action storage.ScheduledAction) error {
		calls++
		return nil
	})

	// Each pass fires the row once and advances one interval from the
	// stored target, even while still behind now.
	poller.runOnce(ctx)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	got, err := store.GetAction(ctx, id)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if !got.TargetTime.Equal(target.Add(time.Minute)) {
		t.Fatalf("expected %v, got %v", target.Add(time.Minute), got.TargetTime)
	}

	poller.runOnce(ctx)
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	got, err = store.GetAction(ctx, id)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if !got.TargetTime.Equal(target.Add(2 * time.Minute)) {
		t.Fatalf("expected %v, got %v", target.Add(2*time.Minute), got.TargetTime)
	}
}

func TestUnknownKindParked(t *testing.T) {
	poller, store, clock := newTestPoller(t)
	ctx := context.Background()

	id, err := store.CreateAction(ctx, storage.ScheduledAction{Kind: "mystery", GuildID: "g1", ChannelID: "c1", CreatorID: "u1", TargetTime: clock.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}

	poller.runOnce(ctx)

	got, err := store.GetAction(ctx, id)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Active {
		t.Fatal("expected unhandled action parked")
	}
}

func TestPayloadCodec(t *testing.T) {
	raw, err := EncodeGiveaway(GiveawayPayload{Prize: "Rare Sword", Winners: 2})
	if err != nil {
		t.Fatalf("encode giveaway: %v", err)
	}
	giveaway, err := DecodeGiveaway(raw)
	if err != nil {
		t.Fatalf("decode giveaway: %v", err)
	}
	if giveaway.Prize != "Rare Sword" || giveaway.Winners != 2 {
		t.Fatalf("unexpected payload: %+v", giveaway)
	}

	raw, err = EncodePoll(PollPayload{Question: "restock?", Options: []string{"yes", "no"}})
	if err != nil {
		t.Fatalf("encode poll: %v", err)
	}
	poll, err := DecodePoll(raw)
	if err != nil {
		t.Fatalf("decode poll: %v", err)
	}
	if poll.Question != "restock?" || len(poll.Options) != 2 {
		t.Fatalf("unexpected payload: %+v", poll)
	}

	if _, err := DecodeReminder("{broken"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestDrawWinners(t *testing.T) {
	entries := []string{"u1", "u2", "u3", "u4", "u5"}

	winners := DrawWinners(entries, 2)
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(winners))
	}
	seen := make(map[string]bool)
	for _, w := range winners {
		if seen[w] {
			t.Fatalf("duplicate winner %s", w)
		}
		seen[w] = true
	}

	// More winners than entries means everyone wins.
	winners = DrawWinners([]string{"u1"}, 3)
	if len(winners) != 1 || winners[0] != "u1" {
		t.Fatalf("unexpected winners: %v", winners)
	}

	if DrawWinners(nil, 2) != nil {
		t.Fatal("expected no winners without entries")
	}
	if DrawWinners(entries, 0) != nil {
		t.Fatal("expected no winners for zero count")
	}
}

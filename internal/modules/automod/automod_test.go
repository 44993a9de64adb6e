package automod

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

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

func newTestModule(t *testing.T) (*Module, *storage.Store, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	module := New(store, zap.NewNop())
	clock := newFakeClock()
	module.WithClock(clock)
	return module, store, clock
}

func putSettings(t *testing.T, module *Module, settings storage.AutomodSettings) {
	t.Helper()
	if err := module.UpdateSettings(context.Background(), settings); err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

func TestSpamBurstFlagged(t *testing.T) {
	module, _, clock := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		SpamMessages:  3,
		SpamWindow:    5 * time.Second,
		WarnThreshold: 10,
	})

	for i := 0; i < 2; i++ {
		verdict := module.CheckMessage(ctx, "g1", "u1", "hello")
		if verdict.Flagged {
			t.Fatalf("message %d flagged before burst threshold", i+1)
		}
		clock.Advance(time.Second)
	}

	verdict := module.CheckMessage(ctx, "g1", "u1", "hello")
	if !verdict.Flagged || verdict.Rule != RuleSpam {
		t.Fatalf("expected spam verdict, got %+v", verdict)
	}
	if verdict.Score != spamScore {
		t.Fatalf("score = %v, want %v", verdict.Score, float64(spamScore))
	}
	if verdict.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1", verdict.Warnings)
	}

	// Outside the window the burst count starts over.
	clock.Advance(6 * time.Second)
	verdict = module.CheckMessage(ctx, "g1", "u1", "hello")
	if verdict.Flagged {
		t.Fatalf("message after window flagged: %+v", verdict)
	}
}

func TestBannedWordMatchesDisguises(t *testing.T) {
	module, _, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		BannedWords:   []string{"grief"},
		WarnThreshold: 10,
	})

	verdict := module.CheckMessage(ctx, "g1", "u1", "stop the GR1ÉF now")
	if !verdict.Flagged || verdict.Rule != RuleBannedWord {
		t.Fatalf("expected banned word verdict, got %+v", verdict)
	}
	if verdict.Reason != "banned word: grief" {
		t.Fatalf("reason = %q", verdict.Reason)
	}

	verdict = module.CheckMessage(ctx, "g1", "u1", "peaceful message")
	if verdict.Flagged {
		t.Fatalf("clean message flagged: %+v", verdict)
	}
}

func TestCapsWallFlagged(t *testing.T) {
	module, _, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		CapsRatio:     0.8,
		CapsMinLength: 12,
		WarnThreshold: 10,
	})

	verdict := module.CheckMessage(ctx, "g1", "u1", "THIS IS A CAPS WALL MESSAGE")
	if !verdict.Flagged || verdict.Rule != RuleCaps {
		t.Fatalf("expected caps verdict, got %+v", verdict)
	}

	// Short shouts are below the minimum length.
	verdict = module.CheckMessage(ctx, "g1", "u1", "WOW")
	if verdict.Flagged {
		t.Fatalf("short shout flagged: %+v", verdict)
	}

	verdict = module.CheckMessage(ctx, "g1", "u1", "Mostly lowercase words here")
	if verdict.Flagged {
		t.Fatalf("lowercase message flagged: %+v", verdict)
	}
}

func TestLinkFilterUsesGuildLists(t *testing.T) {
	module, store, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		LinkFilter:    true,
		WarnThreshold: 10,
	})
	if err := store.AddDomainBlock(ctx, "g1", "bad.example"); err != nil {
		t.Fatalf("add block: %v", err)
	}

	verdict := module.CheckMessage(ctx, "g1", "u1", "free stuff at https://bad.example/free")
	if !verdict.Flagged || verdict.Rule != RuleLink {
		t.Fatalf("expected link verdict, got %+v", verdict)
	}

	verdict = module.CheckMessage(ctx, "g1", "u2", "docs at https://good.example/manual")
	if verdict.Flagged {
		t.Fatalf("unlisted domain flagged: %+v", verdict)
	}

	// An allowlist entry overrides the block for the same domain.
	if err := store.AddDomainAllow(ctx, "g1", "bad.example"); err != nil {
		t.Fatalf("add allow: %v", err)
	}
	module.domains.Purge()
	verdict = module.CheckMessage(ctx, "g1", "u3", "see https://bad.example/ok")
	if verdict.Flagged {
		t.Fatalf("allowlisted domain flagged: %+v", verdict)
	}
}

func TestWarnThresholdTriggersTimeout(t *testing.T) {
	module, store, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:        "g1",
		Enabled:        true,
		BannedWords:    []string{"grief"},
		WarnThreshold:  2,
		TimeoutMinutes: 10,
	})

	verdict := module.CheckMessage(ctx, "g1", "u1", "grief one")
	if verdict.Timeout != 0 {
		t.Fatalf("first offence timed out: %+v", verdict)
	}
	if verdict.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1", verdict.Warnings)
	}

	verdict = module.CheckMessage(ctx, "g1", "u1", "grief two")
	if verdict.Timeout != 10*time.Minute {
		t.Fatalf("timeout = %v, want 10m", verdict.Timeout)
	}
	if verdict.Warnings != 2 {
		t.Fatalf("warnings = %d, want 2", verdict.Warnings)
	}

	// The counter restarts after the timeout fires.
	count, err := store.CountWarnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("count warnings: %v", err)
	}
	if count != 0 {
		t.Fatalf("warnings after timeout = %d, want 0", count)
	}

	verdict = module.CheckMessage(ctx, "g1", "u1", "grief three")
	if verdict.Timeout != 0 || verdict.Warnings != 1 {
		t.Fatalf("cycle did not restart: %+v", verdict)
	}
}

func TestDisabledGuildIgnored(t *testing.T) {
	module, _, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:     "g1",
		Enabled:     false,
		BannedWords: []string{"grief"},
	})

	verdict := module.CheckMessage(ctx, "g1", "u1", "grief grief grief")
	if verdict.Flagged {
		t.Fatalf("disabled guild flagged: %+v", verdict)
	}
}

func TestUpdateSettingsInvalidatesCache(t *testing.T) {
	module, _, _ := newTestModule(t)
	ctx := context.Background()

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		WarnThreshold: 10,
	})

	verdict := module.CheckMessage(ctx, "g1", "u1", "raid them")
	if verdict.Flagged {
		t.Fatalf("flagged before word configured: %+v", verdict)
	}

	putSettings(t, module, storage.AutomodSettings{
		GuildID:       "g1",
		Enabled:       true,
		BannedWords:   []string{"raid"},
		WarnThreshold: 10,
	})

	verdict = module.CheckMessage(ctx, "g1", "u1", "raid them")
	if !verdict.Flagged || verdict.Rule != RuleBannedWord {
		t.Fatalf("updated settings not applied, got %+v", verdict)
	}
}

package reputation

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

func newTestModule(t *testing.T, cfg config.ReputationConfig) (*Module, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	module := New(store, zap.NewNop(), cfg)
	clock := newFakeClock()
	module.WithClock(clock)
	return module, clock
}

func defaultConfig() config.ReputationConfig {
	return config.ReputationConfig{
		Enabled:         true,
		CooldownSeconds: 43200,
		DailyLimit:      3,
	}
}

func TestGive(t *testing.T) {
	module, _ := newTestModule(t, defaultConfig())
	ctx := context.Background()

	total, err := module.Give(ctx, "g1", "giver", "receiver")
	if err != nil {
		t.Fatalf("give: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}

	got, err := module.Total(ctx, "g1", "receiver")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if got != 1 {
		t.Fatalf("stored total = %d, want 1", got)
	}
}

func TestSelfRepRejected(t *testing.T) {
	module, _ := newTestModule(t, defaultConfig())

	if _, err := module.Give(context.Background(), "g1", "u1", "u1"); !errors.Is(err, ErrSelfRep) {
		t.Fatalf("err = %v, want ErrSelfRep", err)
	}
}

func TestPairCooldown(t *testing.T) {
	module, clock := newTestModule(t, defaultConfig())
	ctx := context.Background()

	if _, err := module.Give(ctx, "g1", "giver", "receiver"); err != nil {
		t.Fatalf("give: %v", err)
	}

	if _, err := module.Give(ctx, "g1", "giver", "receiver"); !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("err = %v, want ErrOnCooldown", err)
	}

	left, err := module.CooldownLeft(ctx, "g1", "giver", "receiver")
	if err != nil {
		t.Fatalf("cooldown left: %v", err)
	}
	if left <= 0 || left > 12*time.Hour {
		t.Fatalf("cooldown left = %v", left)
	}

	// A different receiver is a different pair.
	if _, err := module.Give(ctx, "g1", "giver", "other"); err != nil {
		t.Fatalf("give to other: %v", err)
	}

	clock.Advance(13 * time.Hour)
	if _, err := module.Give(ctx, "g1", "giver", "receiver"); err != nil {
		t.Fatalf("give after cooldown: %v", err)
	}
}

func TestDailyLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.CooldownSeconds = 0
	cfg.DailyLimit = 3
	module, clock := newTestModule(t, cfg)
	ctx := context.Background()

	for i, receiver := range []string{"r1", "r2", "r3"} {
		if _, err := module.Give(ctx, "g1", "giver", receiver); err != nil {
			t.Fatalf("give %d: %v", i+1, err)
		}
	}

	if _, err := module.Give(ctx, "g1", "giver", "r4"); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("err = %v, want ErrDailyLimit", err)
	}

	// Another giver has their own budget.
	if _, err := module.Give(ctx, "g1", "other", "r4"); err != nil {
		t.Fatalf("other giver: %v", err)
	}

	clock.Advance(25 * time.Hour)
	if _, err := module.Give(ctx, "g1", "giver", "r4"); err != nil {
		t.Fatalf("give next day: %v", err)
	}
}

func TestDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = false
	module, _ := newTestModule(t, cfg)

	if _, err := module.Give(context.Background(), "g1", "giver", "receiver"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestTop(t *testing.T) {
	cfg := defaultConfig()
	cfg.CooldownSeconds = 0
	cfg.DailyLimit = 0
	module, _ := newTestModule(t, cfg)
	ctx := context.Background()

	for _, giver := range []string{"a", "b", "c"} {
		if _, err := module.Give(ctx, "g1", giver, "popular"); err != nil {
			t.Fatalf("give: %v", err)
		}
	}
	if _, err := module.Give(ctx, "g1", "a", "quiet"); err != nil {
		t.Fatalf("give: %v", err)
	}

	top, err := module.Top(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top length = %d, want 2", len(top))
	}
	if top[0].UserID != "popular" || top[0].Points != 3 {
		t.Fatalf("top entry = %+v", top[0])
	}
}

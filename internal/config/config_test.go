package config

import "testing"

func TestNormalizeClampsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.BalanceTTLSeconds = 0
	cfg.Scheduler.PollSeconds = -5
	cfg.Currency.SilverRate = 0
	cfg.Currency.GoldRate = 10
	cfg.Leveling.XPMin = 20
	cfg.Leveling.XPMax = 5

	normalize(&cfg)

	if cfg.Ledger.BalanceTTLSeconds != 30 {
		t.Fatalf("expected balance ttl 30, got %d", cfg.Ledger.BalanceTTLSeconds)
	}
	if cfg.Scheduler.PollSeconds != 30 {
		t.Fatalf("expected poll seconds 30, got %d", cfg.Scheduler.PollSeconds)
	}
	if cfg.Currency.SilverRate != 100 || cfg.Currency.GoldRate != 10000 {
		t.Fatalf("expected default rates, got %d/%d", cfg.Currency.SilverRate, cfg.Currency.GoldRate)
	}
	if cfg.Leveling.XPMax != 20 {
		t.Fatalf("expected xp max raised to min, got %d", cfg.Leveling.XPMax)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BALANCE_TTL_SECONDS", "45")
	t.Setenv("CLAMP_ADMIN_REMOVE", "no")
	t.Setenv("SILVER_RATE", "250")

	cfg := DefaultConfig()
	applyEnv(&cfg)

	if cfg.Ledger.BalanceTTLSeconds != 45 {
		t.Fatalf("expected 45, got %d", cfg.Ledger.BalanceTTLSeconds)
	}
	if cfg.Ledger.ClampAdminRemove {
		t.Fatal("expected clamp disabled")
	}
	if cfg.Currency.SilverRate != 250 {
		t.Fatalf("expected 250, got %d", cfg.Currency.SilverRate)
	}
}

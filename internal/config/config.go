package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	DatabasePath  string           `yaml:"database_path"`
	LogLevel      string           `yaml:"log_level"`
	OwnerID       string           `yaml:"owner_id"`
	AdminRoleID   string           `yaml:"admin_role_id"`
	Ledger        LedgerConfig     `yaml:"ledger"`
	Catalog       CatalogConfig    `yaml:"catalog"`
	Scheduler     SchedulerConfig  `yaml:"scheduler"`
	Currency      CurrencyConfig   `yaml:"currency"`
	Leveling      LevelingConfig   `yaml:"leveling"`
	Reputation    ReputationConfig `yaml:"reputation"`
	Jobs          JobsConfig       `yaml:"jobs"`
	Web           WebConfig        `yaml:"web"`
	RateLimit     RateLimitConfig  `yaml:"rate_limit"`
	Notifications NotifyConfig     `yaml:"notifications"`
}

type LedgerConfig struct {
	BalanceTTLSeconds int  `yaml:"balance_ttl_seconds"`
	HandleTTLSeconds  int  `yaml:"handle_ttl_seconds"`
	LockWaitMillis    int  `yaml:"lock_wait_millis"`
	ClampAdminRemove  bool `yaml:"clamp_admin_remove"`
}

type CatalogConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type SchedulerConfig struct {
	PollSeconds int `yaml:"poll_seconds"`
}

type CurrencyConfig struct {
	SilverRate int64 `yaml:"silver_rate"`
	GoldRate   int64 `yaml:"gold_rate"`
}

type LevelingConfig struct {
	Enabled         bool `yaml:"enabled"`
	XPMin           int  `yaml:"xp_min"`
	XPMax           int  `yaml:"xp_max"`
	CooldownSeconds int  `yaml:"cooldown_seconds"`
	AnnounceLevelUp bool `yaml:"announce_level_up"`
}

type ReputationConfig struct {
	Enabled         bool `yaml:"enabled"`
	CooldownSeconds int  `yaml:"cooldown_seconds"`
	DailyLimit      int  `yaml:"daily_limit"`
}

type JobsConfig struct {
	Enabled               bool   `yaml:"enabled"`
	AdminLogRetentionDays int    `yaml:"admin_log_retention_days"`
	ActionRetentionDays   int    `yaml:"action_retention_days"`
	TrimSpec              string `yaml:"trim_spec"`
	PurgeSpec             string `yaml:"purge_spec"`
	SummarySpec           string `yaml:"summary_spec"`
	SummaryChannel        string `yaml:"summary_channel"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type RateLimitConfig struct {
	CommandsPerMinute int `yaml:"commands_per_minute"`
	Burst             int `yaml:"burst"`
}

type NotifyConfig struct {
	DMPurchases bool        `yaml:"dm_purchases"`
	LogChannel  string      `yaml:"log_channel"`
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Success int `yaml:"success"`
	Info    int `yaml:"info"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/storekeeper.db",
		LogLevel:     "info",
		Ledger: LedgerConfig{
			BalanceTTLSeconds: 30,
			HandleTTLSeconds:  30,
			LockWaitMillis:    200,
			ClampAdminRemove:  true,
		},
		Catalog:    CatalogConfig{TTLSeconds: 60},
		Scheduler:  SchedulerConfig{PollSeconds: 30},
		Currency:   CurrencyConfig{SilverRate: 100, GoldRate: 10000},
		Leveling:   LevelingConfig{Enabled: true, XPMin: 15, XPMax: 25, CooldownSeconds: 60, AnnounceLevelUp: true},
		Reputation: ReputationConfig{Enabled: true, CooldownSeconds: 43200, DailyLimit: 3},
		Jobs: JobsConfig{
			Enabled:               true,
			AdminLogRetentionDays: 90,
			ActionRetentionDays:   30,
			TrimSpec:              "0 4 * * *",
			PurgeSpec:             "30 4 * * *",
			SummarySpec:           "0 8 * * *",
		},
		Web:       WebConfig{Enabled: false, Addr: ":8080"},
		RateLimit: RateLimitConfig{CommandsPerMinute: 20, Burst: 5},
		Notifications: NotifyConfig{
			DMPurchases: true,
			EmbedColors: EmbedColors{
				Success: 0x22C55E,
				Info:    0x3B82F6,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
			},
		},
	}
}

func Load() (Config, error) {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	normalize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.AdminRoleID = envString("ADMIN_ROLE_ID", cfg.AdminRoleID)
	cfg.Ledger.BalanceTTLSeconds = envInt("BALANCE_TTL_SECONDS", cfg.Ledger.BalanceTTLSeconds)
	cfg.Ledger.HandleTTLSeconds = envInt("HANDLE_TTL_SECONDS", cfg.Ledger.HandleTTLSeconds)
	cfg.Ledger.LockWaitMillis = envInt("LOCK_WAIT_MILLIS", cfg.Ledger.LockWaitMillis)
	cfg.Ledger.ClampAdminRemove = envBool("CLAMP_ADMIN_REMOVE", cfg.Ledger.ClampAdminRemove)
	cfg.Catalog.TTLSeconds = envInt("CATALOG_TTL_SECONDS", cfg.Catalog.TTLSeconds)
	cfg.Scheduler.PollSeconds = envInt("SCHEDULER_POLL_SECONDS", cfg.Scheduler.PollSeconds)
	cfg.Currency.SilverRate = envInt64("SILVER_RATE", cfg.Currency.SilverRate)
	cfg.Currency.GoldRate = envInt64("GOLD_RATE", cfg.Currency.GoldRate)
	cfg.Leveling.Enabled = envBool("LEVELING_ENABLED", cfg.Leveling.Enabled)
	cfg.Leveling.CooldownSeconds = envInt("LEVELING_COOLDOWN_SECONDS", cfg.Leveling.CooldownSeconds)
	cfg.Reputation.Enabled = envBool("REPUTATION_ENABLED", cfg.Reputation.Enabled)
	cfg.Reputation.CooldownSeconds = envInt("REPUTATION_COOLDOWN_SECONDS", cfg.Reputation.CooldownSeconds)
	cfg.Reputation.DailyLimit = envInt("REPUTATION_DAILY_LIMIT", cfg.Reputation.DailyLimit)
	cfg.Jobs.Enabled = envBool("JOBS_ENABLED", cfg.Jobs.Enabled)
	cfg.Jobs.AdminLogRetentionDays = envInt("ADMIN_LOG_RETENTION_DAYS", cfg.Jobs.AdminLogRetentionDays)
	cfg.Jobs.ActionRetentionDays = envInt("ACTION_RETENTION_DAYS", cfg.Jobs.ActionRetentionDays)
	cfg.Jobs.SummaryChannel = envString("SUMMARY_CHANNEL", cfg.Jobs.SummaryChannel)
	cfg.Web.Enabled = envBool("WEB_ENABLED", cfg.Web.Enabled)
	cfg.Web.Addr = envString("WEB_ADDR", cfg.Web.Addr)
	cfg.RateLimit.CommandsPerMinute = envInt("COMMANDS_PER_MINUTE", cfg.RateLimit.CommandsPerMinute)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.Notifications.DMPurchases = envBool("DM_PURCHASES", cfg.Notifications.DMPurchases)
	cfg.Notifications.LogChannel = envString("LOG_CHANNEL", cfg.Notifications.LogChannel)
}

// normalize clamps nonsense values back to safe defaults so a bad override
// cannot stall the poller or zero out the caches.
func normalize(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Ledger.BalanceTTLSeconds <= 0 {
		cfg.Ledger.BalanceTTLSeconds = defaults.Ledger.BalanceTTLSeconds
	}
	if cfg.Ledger.HandleTTLSeconds <= 0 {
		cfg.Ledger.HandleTTLSeconds = defaults.Ledger.HandleTTLSeconds
	}
	if cfg.Ledger.LockWaitMillis <= 0 {
		cfg.Ledger.LockWaitMillis = defaults.Ledger.LockWaitMillis
	}
	if cfg.Catalog.TTLSeconds <= 0 {
		cfg.Catalog.TTLSeconds = defaults.Catalog.TTLSeconds
	}
	if cfg.Scheduler.PollSeconds <= 0 {
		cfg.Scheduler.PollSeconds = defaults.Scheduler.PollSeconds
	}
	if cfg.Currency.SilverRate <= 0 {
		cfg.Currency.SilverRate = defaults.Currency.SilverRate
	}
	if cfg.Currency.GoldRate <= cfg.Currency.SilverRate {
		cfg.Currency.GoldRate = defaults.Currency.GoldRate
	}
	if cfg.Leveling.XPMin <= 0 {
		cfg.Leveling.XPMin = defaults.Leveling.XPMin
	}
	if cfg.Leveling.XPMax < cfg.Leveling.XPMin {
		cfg.Leveling.XPMax = cfg.Leveling.XPMin
	}
	if cfg.Leveling.CooldownSeconds <= 0 {
		cfg.Leveling.CooldownSeconds = defaults.Leveling.CooldownSeconds
	}
	if cfg.Reputation.CooldownSeconds <= 0 {
		cfg.Reputation.CooldownSeconds = defaults.Reputation.CooldownSeconds
	}
	if cfg.Reputation.DailyLimit <= 0 {
		cfg.Reputation.DailyLimit = defaults.Reputation.DailyLimit
	}
	if cfg.RateLimit.CommandsPerMinute <= 0 {
		cfg.RateLimit.CommandsPerMinute = defaults.RateLimit.CommandsPerMinute
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

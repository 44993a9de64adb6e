package leveling

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
	"storekeeper/internal/utils"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	GetLevel(ctx context.Context, guildID, userID string) (storage.LevelProgress, error)
	UpsertLevel(ctx context.Context, progress storage.LevelProgress) error
	TopLevels(ctx context.Context, guildID string, limit int) ([]storage.LevelProgress, error)
}

// Result reports what a message earned its author.
type Result struct {
	Awarded   int64
	Progress  storage.LevelProgress
	LeveledUp bool
}

// Module awards XP for chat activity. Awards are rate limited per member so
// flooding a channel earns nothing extra.
type Module struct {
	store     Store
	cfg       config.LevelingConfig
	logger    *zap.Logger
	clock     Clock
	cooldowns *utils.Cooldown
}

func New(store Store, logger *zap.Logger, cfg config.LevelingConfig) *Module {
	return &Module{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		clock:     realClock{},
		cooldowns: utils.NewCooldown(time.Duration(cfg.CooldownSeconds) * time.Second),
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// XPForLevel is the total XP needed to reach a level.
func XPForLevel(level int) int64 {
	l := int64(level)
	return 50*l*l + 50*l
}

// LevelForXP is the highest level the given total XP reaches.
func LevelForXP(xp int64) int {
	level := 0
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// HandleMessage credits XP for one message. Messages inside the cooldown
// window earn nothing.
func (m *Module) HandleMessage(ctx context.Context, guildID, userID string) (Result, error) {
	if !m.cfg.Enabled {
		return Result{}, nil
	}

	now := m.clock.Now()
	if !m.cooldowns.Try(guildID+":"+userID, now) {
		return Result{}, nil
	}

	progress, err := m.store.GetLevel(ctx, guildID, userID)
	if err != nil {
		return Result{}, err
	}

	awarded := m.roll()
	progress.XP += awarded
	progress.Messages++
	progress.LastMessageAt = now

	newLevel := LevelForXP(progress.XP)
	leveledUp := newLevel > progress.Level
	progress.Level = newLevel

	if err := m.store.UpsertLevel(ctx, progress); err != nil {
		return Result{}, err
	}

	if leveledUp {
		m.logger.Info("member leveled up",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Int("level", newLevel),
			zap.Int64("xp", progress.XP))
	}

	return Result{Awarded: awarded, Progress: progress, LeveledUp: leveledUp}, nil
}

func (m *Module) Progress(ctx context.Context, guildID, userID string) (storage.LevelProgress, error) {
	return m.store.GetLevel(ctx, guildID, userID)
}

func (m *Module) Leaderboard(ctx context.Context, guildID string, limit int) ([]storage.LevelProgress, error) {
	return m.store.TopLevels(ctx, guildID, limit)
}

func (m *Module) roll() int64 {
	min, max := m.cfg.XPMin, m.cfg.XPMax
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return int64(min + rand.IntN(max-min+1))
}

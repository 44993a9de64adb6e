package reputation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/config"
)

var (
	ErrDisabled   = errors.New("reputation is disabled")
	ErrSelfRep    = errors.New("cannot give reputation to yourself")
	ErrOnCooldown = errors.New("reputation pair on cooldown")
	ErrDailyLimit = errors.New("daily reputation limit reached")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	GetReputation(ctx context.Context, guildID, userID string) (int64, error)
	AddReputation(ctx context.Context, guildID, giverID, receiverID string, at time.Time) (int64, error)
	LastRepGiven(ctx context.Context, guildID, giverID, receiverID string) (time.Time, error)
	CountRepGivenSince(ctx context.Context, guildID, giverID string, since time.Time) (int, error)
	TopReputation(ctx context.Context, guildID string, limit int) (map[string]int64, []string, error)
}

type Standing struct {
	UserID string
	Points int64
}

// Module hands out reputation points. The same giver/receiver pair is
// limited by a cooldown and each giver by a daily budget.
type Module struct {
	store  Store
	cfg    config.ReputationConfig
	logger *zap.Logger
	clock  Clock
}

func New(store Store, logger *zap.Logger, cfg config.ReputationConfig) *Module {
	return &Module{
		store:  store,
		cfg:    cfg,
		logger: logger,
		clock:  realClock{},
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// Give awards one point from giver to receiver and returns the receiver's
// new total.
func (m *Module) Give(ctx context.Context, guildID, giverID, receiverID string) (int64, error) {
	if !m.cfg.Enabled {
		return 0, ErrDisabled
	}
	if giverID == receiverID {
		return 0, ErrSelfRep
	}

	now := m.clock.Now()

	cooldown := time.Duration(m.cfg.CooldownSeconds) * time.Second
	if cooldown > 0 {
		last, err := m.store.LastRepGiven(ctx, guildID, giverID, receiverID)
		if err != nil {
			return 0, err
		}
		if !last.IsZero() && now.Sub(last) < cooldown {
			return 0, ErrOnCooldown
		}
	}

	if m.cfg.DailyLimit > 0 {
		count, err := m.store.CountRepGivenSince(ctx, guildID, giverID, now.Add(-24*time.Hour))
		if err != nil {
			return 0, err
		}
		if count >= m.cfg.DailyLimit {
			return 0, ErrDailyLimit
		}
	}

	total, err := m.store.AddReputation(ctx, guildID, giverID, receiverID, now)
	if err != nil {
		return 0, err
	}

	m.logger.Info("reputation given",
		zap.String("guild_id", guildID),
		zap.String("giver_id", giverID),
		zap.String("receiver_id", receiverID),
		zap.Int64("total", total))
	return total, nil
}

// CooldownLeft reports how long the giver must wait before repping the same
// receiver again, zero when the pair is off cooldown.
func (m *Module) CooldownLeft(ctx context.Context, guildID, giverID, receiverID string) (time.Duration, error) {
	cooldown := time.Duration(m.cfg.CooldownSeconds) * time.Second
	if cooldown <= 0 {
		return 0, nil
	}
	last, err := m.store.LastRepGiven(ctx, guildID, giverID, receiverID)
	if err != nil {
		return 0, err
	}
	if last.IsZero() {
		return 0, nil
	}
	left := cooldown - m.clock.Now().Sub(last)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (m *Module) Total(ctx context.Context, guildID, userID string) (int64, error) {
	return m.store.GetReputation(ctx, guildID, userID)
}

func (m *Module) Top(ctx context.Context, guildID string, limit int) ([]Standing, error) {
	points, order, err := m.store.TopReputation(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	standings := make([]Standing, 0, len(order))
	for _, userID := range order {
		standings = append(standings, Standing{UserID: userID, Points: points[userID]})
	}
	return standings, nil
}

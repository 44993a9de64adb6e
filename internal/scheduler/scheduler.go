// Package scheduler polls the durable action registry and fires due actions.
// Firing is at-least-once: a handler failure leaves the row untouched so the
// next pass retries it.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	DueActions(ctx context.Context, now time.Time) ([]storage.ScheduledAction, error)
	RescheduleAction(ctx context.Context, id int64, next time.Time) error
	DeactivateAction(ctx context.Context, id int64) error
}

// Handler completes a due action: announce the winners, send the reminder,
// close the poll. Returning an error means "not done, try again next pass".
type Handler func(ctx context.Context, action storage.ScheduledAction) error

type Poller struct {
	store    Store
	logger   *zap.Logger
	clock    Clock
	interval time.Duration
	handlers map[string]Handler
}

func New(store Store, logger *zap.Logger, cfg config.SchedulerConfig) *Poller {
	return &Poller{
		store:    store,
		logger:   logger,
		clock:    realClock{},
		interval: time.Duration(cfg.PollSeconds) * time.Second,
		handlers: make(map[string]Handler),
	}
}

func (p *Poller) WithClock(clock Clock) {
	p.clock = clock
}

// Register binds a handler to an action kind. Call before Run.
func (p *Poller) Register(kind string, handler Handler) {
	p.handlers[kind] = handler
}

// Run polls immediately, then on every tick until the context ends. Actions
// created while the bot was down fire on the first pass.
func (p *Poller) Run(ctx context.Context) {
	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// runOnce fires every due action once. Rows fail independently; one broken
// action never blocks the rest of the pass.
func (p *Poller) runOnce(ctx context.Context) {
	due, err := p.store.DueActions(ctx, p.clock.Now())
	if err != nil {
		p.logger.Error("list due actions", zap.Error(err))
		return
	}
	for _, action := range due {
		p.fire(ctx, action)
	}
}

func (p *Poller) fire(ctx context.Context, action storage.ScheduledAction) {
	handler, ok := p.handlers[action.Kind]
	if !ok {
		// Nothing will ever complete this row; park it instead of
		// re-firing every pass.
		p.logger.Warn("no handler for action kind",
			zap.Int64("action_id", action.ID),
			zap.String("kind", action.Kind))
		if err := p.store.DeactivateAction(ctx, action.ID); err != nil {
			p.logger.Error("deactivate unhandled action", zap.Int64("action_id", action.ID), zap.Error(err))
		}
		return
	}

	if err := handler(ctx, action); err != nil {
		p.logger.Error("action handler failed",
			zap.Int64("action_id", action.ID),
			zap.String("kind", action.Kind),
			zap.Error(err))
		return
	}

	if action.Recurring() {
		// The next run is anchored to the stored target, not to when the
		// handler happened to finish, so intervals never drift.
		next := action.TargetTime.Add(action.Repeat)
		if err := p.store.RescheduleAction(ctx, action.ID, next); err != nil {
			p.logger.Error("reschedule action", zap.Int64("action_id", action.ID), zap.Error(err))
		}
		return
	}
	if err := p.store.DeactivateAction(ctx, action.ID); err != nil {
		p.logger.Error("deactivate action", zap.Int64("action_id", action.ID), zap.Error(err))
	}
}

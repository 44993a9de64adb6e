package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/storage"
	"storekeeper/internal/utils"
)

// A burst alert fires when one admin performs this many logged actions
// inside the window. Compromised admin accounts tend to move fast.
const (
	burstThreshold = 10
	burstWindow    = time.Minute
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	AddAdminLog(ctx context.Context, entry storage.AdminLog) error
}

// Logger records privileged actions to the admin log, mirrors them to an
// optional notifier and watches for bursts of admin activity.
type Logger struct {
	store  Store
	logger *zap.Logger
	clock  Clock
	notify func(context.Context, storage.AdminLog)
	burst  func(context.Context, string, int)

	mu      sync.Mutex
	windows map[string]*utils.SlidingWindow
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{
		store:   store,
		logger:  logger,
		clock:   realClock{},
		windows: make(map[string]*utils.SlidingWindow),
	}
}

func (l *Logger) WithClock(clock Clock) {
	l.clock = clock
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AdminLog)) {
	l.notify = notify
}

func (l *Logger) SetBurstAlert(alert func(ctx context.Context, adminID string, count int)) {
	l.burst = alert
}

func (l *Logger) Record(ctx context.Context, adminID, action, target, details string) {
	entry := storage.AdminLog{
		AdminID:   adminID,
		Action:    action,
		Target:    target,
		Details:   details,
		CreatedAt: l.clock.Now(),
	}
	if l.store != nil {
		_ = l.store.AddAdminLog(ctx, entry)
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("admin action", zap.String("admin_id", adminID), zap.String("action", action), zap.String("target", target), zap.String("details", details))

	count := l.windowFor(adminID).Add(l.clock.Now())
	// Fire once, exactly when the threshold is crossed.
	if count == burstThreshold && l.burst != nil {
		l.burst(ctx, adminID, count)
	}
}

func (l *Logger) windowFor(adminID string) *utils.SlidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[adminID]
	if !ok {
		window = utils.NewSlidingWindow(burstWindow)
		l.windows[adminID] = window
	}
	return window
}

// Package ledger fronts the account store with short-lived caches and
// per-account locks. All balance mutations funnel through here so that no two
// writes to the same account ever interleave.
package ledger

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
	"storekeeper/internal/utils"
)

var (
	// ErrBusy is returned when an account's lock could not be acquired
	// within the configured wait. The caller should simply retry.
	ErrBusy = errors.New("account is busy, try again")

	ErrInvalidAmount     = errors.New("amount must not be zero")
	ErrInvalidHandle     = errors.New("handle must be 3-20 characters of letters, digits or underscore")
	ErrAlreadyRegistered = errors.New("user already has a registered account")
)

var handleRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the slice of the account store the service needs.
type Store interface {
	CreateAccount(ctx context.Context, handle string) error
	GetBalance(ctx context.Context, handle string) (storage.Balance, error)
	MutateBalance(ctx context.Context, handle string, delta storage.BalanceDelta, txType, details string, clamp bool) (storage.Balance, error)
	ListTransactions(ctx context.Context, handle string, limit int) ([]storage.TransactionRecord, error)
	LinkIdentity(ctx context.Context, userID, handle string) error
	HandleForUser(ctx context.Context, userID string) (string, error)
}

type Service struct {
	store    Store
	logger   *zap.Logger
	clock    Clock
	lockWait time.Duration

	balances *utils.TTLCache[storage.Balance]
	handles  *utils.TTLCache[string]

	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewService(store Store, logger *zap.Logger, cfg config.LedgerConfig) *Service {
	return &Service{
		store:    store,
		logger:   logger,
		clock:    realClock{},
		lockWait: time.Duration(cfg.LockWaitMillis) * time.Millisecond,
		balances: utils.NewTTLCache[storage.Balance](time.Duration(cfg.BalanceTTLSeconds) * time.Second),
		handles:  utils.NewTTLCache[string](time.Duration(cfg.HandleTTLSeconds) * time.Second),
		locks:    make(map[string]chan struct{}),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Register creates the account and links it to the Discord user. Each user
// links at most one handle and each handle belongs to at most one user.
func (s *Service) Register(ctx context.Context, userID, handle string) error {
	if !handleRegex.MatchString(handle) {
		return ErrInvalidHandle
	}
	if _, err := s.store.HandleForUser(ctx, userID); err == nil {
		return ErrAlreadyRegistered
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	return s.WithAccountLock(ctx, handle, func() error {
		if err := s.store.CreateAccount(ctx, handle); err != nil {
			return err
		}
		if err := s.store.LinkIdentity(ctx, userID, handle); err != nil {
			return err
		}
		now := s.clock.Now()
		s.handles.Set(userID, handle, now)
		s.balances.Set(handle, storage.Balance{}, now)
		s.logger.Info("account registered", zap.String("user_id", userID), zap.String("handle", handle))
		return nil
	})
}

// HandleFor resolves the caller's registered handle, serving recent answers
// from cache.
func (s *Service) HandleFor(ctx context.Context, userID string) (string, error) {
	if handle, ok := s.handles.Get(userID, s.clock.Now()); ok {
		return handle, nil
	}
	handle, err := s.store.HandleForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	s.handles.Set(userID, handle, s.clock.Now())
	return handle, nil
}

// Balance returns the account balance, cached for the configured TTL. Reads
// never wait on the account lock; a read racing a mutation sees either the
// old or the new committed balance.
func (s *Service) Balance(ctx context.Context, handle string) (storage.Balance, error) {
	if balance, ok := s.balances.Get(handle, s.clock.Now()); ok {
		return balance, nil
	}
	balance, err := s.store.GetBalance(ctx, handle)
	if err != nil {
		return storage.Balance{}, err
	}
	s.balances.Set(handle, balance, s.clock.Now())
	return balance, nil
}

// BalanceForUser resolves the user's handle first, then reads its balance.
func (s *Service) BalanceForUser(ctx context.Context, userID string) (string, storage.Balance, error) {
	handle, err := s.HandleFor(ctx, userID)
	if err != nil {
		return "", storage.Balance{}, err
	}
	balance, err := s.Balance(ctx, handle)
	if err != nil {
		return "", storage.Balance{}, err
	}
	return handle, balance, nil
}

// Mutate applies a delta under the account lock and refreshes the cache with
// the committed result before the lock is released.
func (s *Service) Mutate(ctx context.Context, handle string, delta storage.BalanceDelta, txType, details string, clamp bool) (storage.Balance, error) {
	if delta.IsZero() {
		return storage.Balance{}, ErrInvalidAmount
	}

	var balance storage.Balance
	err := s.WithAccountLock(ctx, handle, func() error {
		updated, err := s.store.MutateBalance(ctx, handle, delta, txType, details, clamp)
		if err != nil {
			return err
		}
		balance = updated
		s.balances.Set(handle, updated, s.clock.Now())
		return nil
	})
	if err != nil {
		return storage.Balance{}, err
	}
	s.logger.Debug("balance mutated",
		zap.String("handle", handle),
		zap.String("type", txType),
		zap.Int64("copper", balance.Copper),
		zap.Int64("silver", balance.Silver),
		zap.Int64("gold", balance.Gold))
	return balance, nil
}

// Reset zeroes the account. The read and the compensating mutation run under
// the same lock acquisition, so no other write can slip between them.
func (s *Service) Reset(ctx context.Context, handle string) (storage.Balance, error) {
	var balance storage.Balance
	err := s.WithAccountLock(ctx, handle, func() error {
		current, err := s.store.GetBalance(ctx, handle)
		if err != nil {
			return err
		}
		delta := storage.BalanceDelta{Copper: -current.Copper, Silver: -current.Silver, Gold: -current.Gold}
		if delta.IsZero() {
			balance = current
			s.balances.Set(handle, current, s.clock.Now())
			return nil
		}
		updated, err := s.store.MutateBalance(ctx, handle, delta, storage.TxAdminReset, "balance reset", true)
		if err != nil {
			return err
		}
		balance = updated
		s.balances.Set(handle, updated, s.clock.Now())
		return nil
	})
	if err != nil {
		return storage.Balance{}, err
	}
	return balance, nil
}

func (s *Service) History(ctx context.Context, handle string, limit int) ([]storage.TransactionRecord, error) {
	return s.store.ListTransactions(ctx, handle, limit)
}

// WithAccountLock runs fn while holding the account's lock. Acquisition waits
// up to the configured bound, then gives up with ErrBusy rather than queueing
// callers indefinitely. Locks are per account; other accounts stay free.
func (s *Service) WithAccountLock(ctx context.Context, handle string, fn func() error) error {
	lock := s.lockFor(handle)
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()

	select {
	case lock <- struct{}{}:
		defer func() { <-lock }()
		return fn()
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCachedBalance refreshes the cached balance. Callers must hold the
// account lock, which is why the shop calls this inside WithAccountLock.
func (s *Service) SetCachedBalance(handle string, balance storage.Balance) {
	s.balances.Set(handle, balance, s.clock.Now())
}

// Locks are created on first use and kept for the life of the process. The
// map grows with the number of distinct accounts, a few dozen bytes each.
func (s *Service) lockFor(handle string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[handle]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[handle] = lock
	}
	return lock
}

package analytics

import (
	"context"
	"time"

	"storekeeper/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

// Report is a snapshot of the economy and community activity. Counters with
// a window cover [since, now], the rest are current totals.
type Report struct {
	Accounts      int
	TotalHoldings storage.Balance
	Transactions  map[string]int
	ActiveTraders int
	Purchases     int
	Revenue       int64
	TopProducts   []storage.ProductSales
	ActiveActions map[string]int
	Warnings      int
	AdminActions  int
	Messages      int64
}

func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	report := Report{}

	var err error
	if report.Accounts, err = s.store.CountAccounts(ctx); err != nil {
		return Report{}, err
	}
	if report.TotalHoldings, err = s.store.TotalHoldings(ctx); err != nil {
		return Report{}, err
	}
	if report.Transactions, err = s.store.CountTransactionsSince(ctx, since); err != nil {
		return Report{}, err
	}
	if report.ActiveTraders, err = s.store.ActiveTradersSince(ctx, since); err != nil {
		return Report{}, err
	}
	if report.Purchases, report.Revenue, err = s.store.PurchaseTotalsSince(ctx, since); err != nil {
		return Report{}, err
	}
	if report.TopProducts, err = s.store.TopProducts(ctx, 5); err != nil {
		return Report{}, err
	}
	if report.ActiveActions, err = s.store.CountActiveActionsByKind(ctx); err != nil {
		return Report{}, err
	}
	if report.Warnings, err = s.store.CountWarningsSince(ctx, since); err != nil {
		return Report{}, err
	}

	logs, err := s.store.ListAdminLogs(ctx, since)
	if err != nil {
		return Report{}, err
	}
	report.AdminActions = len(logs)

	if report.Messages, err = s.store.MessagesCounted(ctx, ""); err != nil {
		return Report{}, err
	}

	return report, nil
}

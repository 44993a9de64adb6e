package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storekeeper/internal/analytics"
	"storekeeper/internal/config"
	"storekeeper/internal/currency"
	"storekeeper/internal/storage"
)

const jobTimeout = time.Minute

// Notifier delivers the daily summary, usually to a Discord channel.
type Notifier func(ctx context.Context, channelID, message string)

// Runner owns the background maintenance schedule. Admin logs and spent
// scheduled actions are trimmed on a retention window; the transaction log
// is never touched.
type Runner struct {
	cron      *cron.Cron
	store     *storage.Store
	analytics *analytics.Service
	logger    *zap.Logger
	cfg       config.JobsConfig
	notify    Notifier
}

func New(store *storage.Store, analyticsService *analytics.Service, logger *zap.Logger, cfg config.JobsConfig) *Runner {
	return &Runner{
		cron:      cron.New(),
		store:     store,
		analytics: analyticsService,
		logger:    logger,
		cfg:       cfg,
	}
}

func (r *Runner) SetNotifier(notify Notifier) {
	r.notify = notify
}

func (r *Runner) Start() error {
	if !r.cfg.Enabled {
		return nil
	}

	if _, err := r.cron.AddFunc(r.cfg.TrimSpec, r.trimAdminLogs); err != nil {
		return fmt.Errorf("schedule admin log trim: %w", err)
	}
	if _, err := r.cron.AddFunc(r.cfg.PurgeSpec, r.purgeActions); err != nil {
		return fmt.Errorf("schedule action purge: %w", err)
	}
	if r.cfg.SummaryChannel != "" {
		if _, err := r.cron.AddFunc(r.cfg.SummarySpec, r.postSummary); err != nil {
			return fmt.Errorf("schedule summary: %w", err)
		}
	}

	r.cron.Start()
	r.logger.Info("maintenance jobs started",
		zap.String("trim", r.cfg.TrimSpec),
		zap.String("purge", r.cfg.PurgeSpec),
		zap.String("summary", r.cfg.SummarySpec))
	return nil
}

// Stop waits for any running job to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) trimAdminLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := r.store.CleanupAdminLogs(ctx, r.cfg.AdminLogRetentionDays); err != nil {
		r.logger.Error("admin log trim failed", zap.Error(err))
		return
	}
	r.logger.Info("admin logs trimmed", zap.Int("retention_days", r.cfg.AdminLogRetentionDays))
}

func (r *Runner) purgeActions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -r.cfg.ActionRetentionDays)
	purged, err := r.store.PurgeInactiveActions(ctx, cutoff)
	if err != nil {
		r.logger.Error("action purge failed", zap.Error(err))
		return
	}
	r.logger.Info("inactive actions purged", zap.Int64("purged", purged))
}

func (r *Runner) postSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := r.analytics.Report(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		r.logger.Error("summary report failed", zap.Error(err))
		return
	}

	if r.notify == nil {
		return
	}
	r.notify(ctx, r.cfg.SummaryChannel, formatSummary(report))
}

func formatSummary(report analytics.Report) string {
	var b strings.Builder
	b.WriteString("**Daily summary**\n")
	fmt.Fprintf(&b, "Accounts: %d (%d active traders)\n", report.Accounts, report.ActiveTraders)
	fmt.Fprintf(&b, "Holdings: %s\n", currency.Format(report.TotalHoldings))
	fmt.Fprintf(&b, "Purchases: %d for %s\n", report.Purchases, currency.FormatCopper(report.Revenue))
	fmt.Fprintf(&b, "Messages: %d\n", report.Messages)
	fmt.Fprintf(&b, "Warnings: %d, admin actions: %d\n", report.Warnings, report.AdminActions)

	if len(report.ActiveActions) > 0 {
		parts := make([]string, 0, len(report.ActiveActions))
		for _, kind := range []string{storage.ActionGiveaway, storage.ActionReminder, storage.ActionPoll} {
			if count := report.ActiveActions[kind]; count > 0 {
				parts = append(parts, fmt.Sprintf("%d %ss", count, kind))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "Scheduled: %s\n", strings.Join(parts, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

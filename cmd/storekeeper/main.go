package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storekeeper/internal/analytics"
	"storekeeper/internal/bot"
	"storekeeper/internal/catalog"
	"storekeeper/internal/config"
	"storekeeper/internal/currency"
	"storekeeper/internal/jobs"
	"storekeeper/internal/ledger"
	"storekeeper/internal/modules/audit"
	"storekeeper/internal/modules/automod"
	"storekeeper/internal/modules/leveling"
	"storekeeper/internal/modules/reputation"
	"storekeeper/internal/scheduler"
	"storekeeper/internal/shop"
	"storekeeper/internal/storage"
	"storekeeper/internal/web"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ledgerService := ledger.NewService(store, logger, cfg.Ledger)
	catalogService := catalog.NewService(store, cfg.Catalog)
	shopService := shop.NewService(store, ledgerService, catalogService, logger)
	poller := scheduler.New(store, logger, cfg.Scheduler)

	auditLogger := audit.NewLogger(store, logger)
	automodModule := automod.New(store, logger)
	levelingModule := leveling.New(store, logger, cfg.Leveling)
	reputationModule := reputation.New(store, logger, cfg.Reputation)
	analyticsService := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, ledgerService, catalogService, shopService, poller,
		automodModule, levelingModule, reputationModule, auditLogger, analyticsService)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	pollCtx, stopPolling := context.WithCancel(context.Background())
	go poller.Run(pollCtx)

	runner := jobs.New(store, analyticsService, logger, cfg.Jobs)
	runner.SetNotifier(func(ctx context.Context, channelID, message string) {
		botSvc.Notify(channelID, message)
	})
	if err := runner.Start(); err != nil {
		logger.Fatal("jobs start failed", zap.Error(err))
	}

	var server *web.Server
	if cfg.Web.Enabled {
		rates := currency.Rates{Silver: cfg.Currency.SilverRate, Gold: cfg.Currency.GoldRate}
		server = web.New(analyticsService, rates, logger, cfg.Web)
		go func() {
			if err := server.Run(); err != nil {
				logger.Error("web server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	stopPolling()
	runner.Stop()
	botSvc.Close()
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"atelier-ai/internal/billing"
	"atelier-ai/internal/bot"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/config"
	"atelier-ai/internal/gemini"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/history"
	"atelier-ai/internal/httpclient"
	"atelier-ai/internal/mediagroup"
	"atelier-ai/internal/store"
	"atelier-ai/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.TelegramToken == "" {
		panic("TELEGRAM_BOT_TOKEN is required")
	}

	logger := newLogger(cfg)

	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("database init failed", "err", err)
		os.Exit(1)
	}

	defaultTier, err := billing.ParseTier(cfg.DefaultTier)
	if err != nil {
		logger.Error("invalid DEFAULT_TIER", "err", err)
		os.Exit(1)
	}

	ledger, err := billing.NewLedger(billing.LedgerOptions{
		DB:            db,
		DefaultTier:   defaultTier,
		SignupCredits: cfg.SignupCredits,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("ledger init failed", "err", err)
		os.Exit(1)
	}

	schedule, err := billing.NewSchedule(cfg.ServiceCosts, cfg.ServiceTiers)
	if err != nil {
		logger.Error("invalid service schedule", "err", err)
		os.Exit(1)
	}

	gate := billing.NewGate(billing.GateOptions{
		Ledger:   ledger,
		Schedule: schedule,
		Logger:   logger,
	})

	historyStore, err := history.NewStore(history.StoreOptions{DB: db, Logger: logger})
	if err != nil {
		logger.Error("history init failed", "err", err)
		os.Exit(1)
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	registry := catalog.Default()

	service := generation.NewService(generation.ServiceOptions{
		Validator: generation.NewValidator(registry),
		Gate:      gate,
		Gateway: generation.NewGateway(generation.GatewayOptions{
			Capability: gem,
			Timeout:    cfg.GatewayTimeout,
			Logger:     logger,
		}),
		History:                historyStore,
		Logger:                 logger,
		ChargeTerminalFailures: cfg.ChargeTerminalFailures,
	})

	handler := bot.New(bot.Options{
		Telegram: tg,
		Service:  service,
		Ledger:   ledger,
		Catalog:  registry,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sem := make(chan struct{}, cfg.MaxConcurrent)

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush: func(group mediagroup.Group) {
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				groupCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()
				handler.HandleMediaGroup(groupCtx, group)
			}()
		},
	})
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{})
	for {
		select {
		case <-ctx.Done():
			tg.StopUpdates()
			aggregator.Stop()
			logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				updateCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()
				if err := handler.HandleUpdate(updateCtx, update); err != nil {
					logger.Error("update failed", "err", err)
				}
			}()
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

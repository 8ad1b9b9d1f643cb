package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"atelier-ai/internal/auth"
	"atelier-ai/internal/billing"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/config"
	"atelier-ai/internal/gemini"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/history"
	"atelier-ai/internal/httpclient"
	"atelier-ai/internal/server"
	"atelier-ai/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
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
		Ledger:         ledger,
		Schedule:       schedule,
		AllowAnonymous: cfg.AllowAnonymous,
		Logger:         logger,
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

	srv := server.New(server.Options{
		Service:  service,
		Gate:     gate,
		History:  historyStore,
		Catalog:  registry,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Logger:   logger,
		Debug:    cfg.Debug,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("api started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
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

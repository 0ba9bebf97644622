package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"options-trading-engine/config"
	"options-trading-engine/internal/api"
	"options-trading-engine/internal/auth"
	"options-trading-engine/internal/chain"
	"options-trading-engine/internal/dispatch"
	"options-trading-engine/internal/events"
	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
	"options-trading-engine/internal/ml"
	"options-trading-engine/internal/orchestrator"
	"options-trading-engine/internal/secrets"
	"options-trading-engine/internal/tradelog"
)

const (
	exitOK          = 0
	exitConfigError = 1
	exitIOError     = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		return exitConfigError
	}
	if err := cfg.Validate(); err != nil {
		logging.Error("Invalid configuration", "error", err)
		return exitConfigError
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized", "level", cfg.LoggingConfig.Level)

	bus := events.NewBus()

	secretStore, err := secrets.NewStore(secrets.Config{
		Enabled:    cfg.VaultConfig.Enabled,
		Address:    cfg.VaultConfig.Address,
		Token:      cfg.VaultConfig.Token,
		MountPath:  cfg.VaultConfig.MountPath,
		SecretPath: cfg.VaultConfig.SecretPath,
		CACert:     cfg.VaultConfig.CACert,
	})
	if err != nil {
		logger.Error("Failed to initialize secrets store", "error", err)
		return exitConfigError
	}

	journal, err := tradelog.NewJournal(cfg.JournalConfig.Dir)
	if err != nil {
		logger.Error("Failed to open trade journal", "dir", cfg.JournalConfig.Dir, "error", err)
		return exitConfigError
	}
	logger.Info("Trade journal ready", "dir", cfg.JournalConfig.Dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *tradelog.Store
	if cfg.DatabaseConfig.Enabled {
		store, err = tradelog.NewStore(ctx, tradelog.StoreConfig{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		})
		if err != nil {
			logger.Error("Failed to connect to Postgres", "error", err)
			return exitIOError
		}
		defer store.Close()
		logger.Info("Postgres trade store connected", "host", cfg.DatabaseConfig.Host)

		// Keep Postgres in sync with the file journal
		mirror := func(ev events.Event) {
			id, _ := ev.Data["trade_id"].(string)
			if t, ok := journal.Get(id); ok {
				if err := store.Mirror(ctx, t); err != nil {
					logger.Warn("Trade mirror failed", "trade_id", id, "error", err)
				}
			}
		}
		bus.Subscribe(events.EventTradeOpened, mirror)
		bus.Subscribe(events.EventTradeClosed, mirror)
	}

	var cache *chain.Cache
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, snapshot caching disabled", "error", err)
		} else {
			cache = chain.NewCache(client, cfg.ChainConfig.CacheTTL)
			logger.Info("Chain snapshot cache enabled", "addr", cfg.RedisConfig.Address)
		}
	}

	model, err := ml.LoadModel(cfg.MLConfig.ModelPath)
	if err != nil {
		logger.Warn("Model artifact unavailable, using rule-based fallback",
			"path", cfg.MLConfig.ModelPath, "error", err)
	}
	predictor := ml.NewPredictor(model, cfg.MLConfig.CacheTTL)

	fetcher := chain.NewFetcher()
	if cfg.ChainConfig.BaseURL != "" {
		fetcher.SetBaseURL(cfg.ChainConfig.BaseURL)
	}

	var dispatcher orchestrator.Dispatcher
	if cfg.DispatchConfig.Enabled {
		dispatchCfg := dispatch.Config{
			BaseURL:     cfg.DispatchConfig.BaseURL,
			TokenFile:   cfg.DispatchConfig.TokenFile,
			RealTrading: cfg.DispatchConfig.RealTrading,
		}
		if creds, err := secretStore.Get(ctx, "fyers"); err == nil {
			dispatchCfg.APIKey = creds.APIKey
			dispatchCfg.APISecret = creds.APISecret
		} else if cfg.DispatchConfig.RealTrading {
			logger.Error("Real trading enabled but no broker credentials found", "error", err)
			return exitConfigError
		}
		zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
		dispatcher = dispatch.NewExecutor(dispatchCfg, journal, zl)
		logger.Info("Order dispatch enabled", "real_trading", cfg.DispatchConfig.RealTrading)
	}

	indices := make([]market.Index, 0, len(cfg.EngineConfig.Indices))
	for _, name := range cfg.EngineConfig.Indices {
		indices = append(indices, market.ParseIndex(name))
	}

	engine := orchestrator.New(orchestrator.Config{
		Indices:       indices,
		RiskProfile:   market.ParseRiskProfile(cfg.EngineConfig.RiskProfile),
		Interval:      cfg.EngineConfig.Interval,
		Timeframe:     cfg.EngineConfig.Timeframe,
		Balance:       cfg.EngineConfig.Balance,
		RiskPerTrade:  cfg.EngineConfig.RiskPerTrade,
		IgnoreSession: cfg.EngineConfig.IgnoreSession,
		ReportDir:     cfg.EngineConfig.ReportDir,
	}, orchestrator.Deps{
		Chains:     fetcher,
		Cache:      cache,
		Predictor:  predictor,
		Journal:    journal,
		Dispatcher: dispatcher,
		Bus:        bus,
	})

	authMgr := auth.NewManager(auth.Config{
		Enabled:       cfg.AuthConfig.Enabled,
		Secret:        cfg.AuthConfig.JWTSecret,
		AdminUser:     cfg.AuthConfig.AdminUser,
		AdminPassHash: cfg.AuthConfig.AdminPassHash,
		TokenLifetime: cfg.AuthConfig.TokenLifetime,
	})

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: true,
	}, engine, journal, authMgr, bus)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()

	logger.Info("Engine started",
		"indices", cfg.EngineConfig.Indices,
		"risk_profile", cfg.EngineConfig.RiskProfile,
		"interval", cfg.EngineConfig.Interval.String(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	code := exitOK
	select {
	case sig := <-sigChan:
		logger.Info("Shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			code = exitIOError
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		logger.Warn("Engine did not stop in time")
	}

	logger.Info("Shutdown complete")
	return code
}

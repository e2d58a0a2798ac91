package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kidlock/internal/clock"
	"github.com/kailas-cloud/kidlock/internal/config"
	"github.com/kailas-cloud/kidlock/internal/db"
	dbRedis "github.com/kailas-cloud/kidlock/internal/db/redis"
	"github.com/kailas-cloud/kidlock/internal/host/bridge"
	logpkg "github.com/kailas-cloud/kidlock/internal/logger"
	"github.com/kailas-cloud/kidlock/internal/metrics"
	"github.com/kailas-cloud/kidlock/internal/repository/state"
	adminuc "github.com/kailas-cloud/kidlock/internal/usecase/admin"
	budgetuc "github.com/kailas-cloud/kidlock/internal/usecase/budget"
	grantuc "github.com/kailas-cloud/kidlock/internal/usecase/grant"
)

// app is the object graph shared by serve and the admin commands.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	clock  clock.Clock
	repo   *state.Repo
	host   *bridge.Bridge
	engine *budgetuc.Engine
	admin  *adminuc.Service
}

// newApp loads configuration, connects to the store and wires the use cases.
func newApp(ctx context.Context) (*app, error) {
	// .env is optional; real deployments pass variables through the service unit
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Redis and Valkey speak the same protocol for plain KV; one rueidis store serves both.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	loc, err := clock.LoadLocation(cfg.Budget.Timezone)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("timezone: %w", err)
	}
	clk := clock.NewSystem(loc)

	repo := state.New(store, cfg.Storage.KeyPrefix, state.Defaults{
		PIN:               cfg.Budget.DefaultPIN,
		DailyLimitMinutes: *cfg.Budget.DefaultDailyLimitMinutes,
		BlockingEnabled:   *cfg.Enforcement.BlockingDefault,
	}, metrics.PersistRetriesTotal, logger)

	host := bridge.New(bridge.Config{
		LiveFreshness:   time.Duration(cfg.Enforcement.LiveProbeFreshnessSec) * time.Second,
		ReportFreshness: time.Duration(cfg.Enforcement.UsageReportFreshnessSec) * time.Second,
	}, clk, logger)

	engine := budgetuc.New(repo, host, clk, logger)
	registry := grantuc.New(repo, engine, clk, logger)

	return &app{
		env:    env,
		cfg:    cfg,
		logger: logger,
		store:  store,
		clock:  clk,
		repo:   repo,
		host:   host,
		engine: engine,
		admin:  adminuc.New(engine, registry, repo, host, host, logger),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

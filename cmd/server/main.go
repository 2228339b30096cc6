package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/codex-http-clean-arch/internal/adapters/http/handler"
	cacherepo "github.com/ogurasousui/codex-http-clean-arch/internal/adapters/repository/cache"
	"github.com/ogurasousui/codex-http-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/cache"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/codex-http-clean-arch/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/logger"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/metrics"
	"github.com/ogurasousui/codex-http-clean-arch/internal/platform/server"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		zl.Fatal("failed to initialize database pool", zap.Error(err))
	}
	defer dbPool.Close()

	m := metrics.New()

	var companyRepo company.Repository = postgres.NewCompanyRepository(dbPool)
	if cfg.Cache.Enabled() {
		redisClient, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			zl.Fatal("failed to connect to cache", zap.Error(err))
		}
		defer redisClient.Close()

		companyRepo = cacherepo.NewCompanyRepository(companyRepo, redisClient, cfg.Cache.TTL,
			cacherepo.WithLogger(zl.Named("cache")),
			cacherepo.WithRecorder(m),
		)
		zl.Info("company cache enabled", zap.String("addr", cfg.Cache.Addr), zap.Duration("ttl", cfg.Cache.TTL))
	}

	txManager := pg.NewTransactionManager(dbPool,
		pg.WithRetries(cfg.Database.TxRetries),
		pg.WithTxLogger(zl.Named("tx")),
	)
	companySvc := company.NewService(companyRepo, nil, txManager,
		company.WithPageSizes(cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize),
	)

	router := handler.NewRouter(handler.RouterParams{
		Logger:             zl.Named("http"),
		Companies:          handler.NewCompanyHandler(companySvc, cfg.HTTP.BasePath, zl.Named("companies")),
		Metrics:            m,
		Health:             dbPool,
		RequestTimeout:     cfg.Server.RequestTimeout,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	})

	srv := server.New(server.Options{
		HTTPAddr:        cfg.Server.ListenAddr,
		GRPCHealthAddr:  cfg.Server.GRPCHealthAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, zl.Named("server"))

	if err := srv.Run(ctx); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}

	zl.Info("server stopped")
}

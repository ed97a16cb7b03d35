package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/SnapLink/config"
	apprepository "github.com/sifan077/SnapLink/internal/app/repository"
	appserver "github.com/sifan077/SnapLink/internal/app/server"
	appservice "github.com/sifan077/SnapLink/internal/app/service"
	"github.com/sifan077/SnapLink/internal/infra/logger"
	infraNATS "github.com/sifan077/SnapLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/SnapLink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/SnapLink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/SnapLink/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.MustInit(logger.Config{
		Development: os.Getenv("APP_ENV") != "production",
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	appLog, err := logger.Init(logger.Config{
		Development: cfg.App.Development(),
		Level:       cfg.App.LogLevel,
		Fields:      map[string]string{"service": "snaplink", "env": cfg.App.Env},
	})
	if err != nil {
		log.Fatal("Failed to rebuild logger", zap.Error(err))
	}
	log = appLog

	log.Info("Configuration loaded successfully",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("listen_addr", cfg.App.ListenAddr),
		zap.Int("default_validity_minutes", cfg.Links.DefaultValidityMinutes),
		zap.Int("code_length", cfg.Links.CodeLength),
		zap.String("snapshot_path", cfg.Snapshot.Path),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	deps := appserver.Dependencies{
		Logger:         log,
		LocationHeader: cfg.Links.LocationHeader,
	}

	var store apprepository.LinkStore
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
		if err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		if err := infraPostgres.AutoMigrate(ctx, gormDB, apprepository.Models()...); err != nil {
			return err
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		deps.Postgres = pool

		store = apprepository.NewLinkRepository(gormDB)
		log.Info("Connected to Postgres successfully",
			zap.String("host", cfg.Postgres.Host),
			zap.String("database", cfg.Postgres.Database))
	case config.DriverMemory:
		store = apprepository.NewMemoryStore()
	}

	if cfg.Redis.Configured() {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		deps.Redis = redisClient
		log.Info("Connected to Redis successfully", zap.String("host", cfg.Redis.Host))

		if cfg.Store.Driver == config.DriverRedis {
			store = apprepository.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
		}
	}

	var snapshots *appservice.SnapshotJob
	if cfg.Snapshot.Path != "" {
		snapshots = appservice.NewSnapshotJob(log.Named("snapshot"), store, cfg.Snapshot.Path, cfg.Snapshot.Schedule)
		if cfg.Snapshot.RestoreOnStart {
			if _, err := snapshots.Restore(ctx); err != nil {
				return err
			}
		}
		if err := snapshots.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := snapshots.Stop(stopCtx); err != nil {
				log.Warn("Failed to write final snapshot", zap.Error(err))
			}
		}()
	}

	allocator := appservice.NewAllocator(appservice.AllocatorDeps{
		Store:       store,
		Logger:      log.Named("allocator"),
		CodeLength:  cfg.Links.CodeLength,
		MaxAttempts: cfg.Links.MaxAllocationAttempts,
	})
	if n, err := allocator.Warm(ctx); err != nil {
		log.Warn("Failed to warm allocator", zap.Error(err))
	} else {
		log.Info("Allocator warmed", zap.Int("codes", n))
	}

	var notifier appservice.ClickNotifier
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			return err
		}
		defer drain(natsConn, log)

		if err := appservice.EnsureClickStream(js); err != nil {
			return err
		}
		notifier = appservice.NewClickPublisher(js)

		consumer := appservice.NewClickConsumer(js, log.Named("clicks"), nil)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	deps.Links = appservice.NewLinkService(appservice.LinkServiceDeps{
		Store:     store,
		Allocator: allocator,
		Expiry:    appservice.NewExpiryPolicy(time.Duration(cfg.Links.DefaultValidityMinutes) * time.Minute),
		Stats:     appservice.NewStatsReader(store, cfg.Stats.CacheTTL),
		Notifier:  notifier,
		Logger:    log.Named("links"),
	})

	server := appserver.New(deps)
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		errCh <- server.Listen(cfg.App.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func drain(conn *nats.Conn, log *zap.Logger) {
	if err := conn.Drain(); err != nil {
		log.Warn("Failed to drain NATS connection", zap.Error(err))
	}
}

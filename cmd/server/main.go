package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/linkmint/linkmint/config"
	appmodel "github.com/linkmint/linkmint/internal/app/model"
	apprepository "github.com/linkmint/linkmint/internal/app/repository"
	appserver "github.com/linkmint/linkmint/internal/app/server"
	appservice "github.com/linkmint/linkmint/internal/app/service"
	appcache "github.com/linkmint/linkmint/internal/cache"
	"github.com/linkmint/linkmint/internal/infra/logger"
	infraNATS "github.com/linkmint/linkmint/internal/infra/nats"
	infraPostgres "github.com/linkmint/linkmint/internal/infra/postgres"
	infraPrometheus "github.com/linkmint/linkmint/internal/infra/prometheus"
	infraRedis "github.com/linkmint/linkmint/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Duration("cleanup_interval", cfg.Cleanup.Interval),
		zap.Duration("cleanup_inactivity_window", cfg.Cleanup.InactivityWindow),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.LinkStat{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	linkCache := appcache.NewRedis(redisClient, log)

	linkRepo := apprepository.NewLinkRepository(gormDB)
	recorder := apprepository.NewAccessRecorder(pool)

	// Seed the bloom filter with every code already issued.
	filter := appservice.NewCodeFilter(0)
	codes, err := linkRepo.ListCodes(ctx)
	if err != nil {
		log.Fatal("Failed to load existing short codes", zap.Error(err))
	}
	filter.Seed(codes)
	log.Info("Code filter seeded", zap.Int("codes", len(codes)))

	// Access events go through NATS when configured; otherwise they are
	// recorded on in-process goroutines.
	var sink appservice.AccessSink
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		consumer := appservice.NewAccessConsumer(js, log, recorder)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start access consumer", zap.Error(err))
		}
		sink = appservice.NewAccessPublisher(js)
		log.Info("Connected to NATS successfully")
	} else {
		recorderSink := appservice.NewRecorderSink(recorder, log)
		defer recorderSink.Drain()
		sink = recorderSink
		log.Info("NATS disabled, recording access events in-process")
	}

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkService := appservice.NewLinkService(appservice.LinkServiceDeps{
		Repo:   linkRepo,
		Cache:  linkCache,
		Filter: filter,
		Logger: log,
	})

	resolver := appservice.NewResolver(appservice.ResolverDeps{
		Repo:   linkRepo,
		Cache:  linkCache,
		Sink:   sink,
		Logger: log,
	})

	// Cleanup runs on its own clock, owned by this process, stopped on the
	// way out.
	cleanup := appservice.NewCleanupScheduler(appservice.CleanupDeps{
		Logger:   log,
		Repo:     linkRepo,
		Cache:    linkCache,
		Interval: cfg.Cleanup.Interval,
		Window:   cfg.Cleanup.InactivityWindow,
	})
	cleanup.Start()
	defer cleanup.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger:   log,
		Cache:    linkCache,
		Links:    linkService,
		Resolver: resolver,
		Secret:   []byte(cfg.Auth.Secret),
	})

	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

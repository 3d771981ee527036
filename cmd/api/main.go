package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siddartha1192/bharat-crm-sub009/internal/api/rest"
	domain "github.com/siddartha1192/bharat-crm-sub009/internal/domain/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/cache"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/config"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telemetry"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
	conversationsvc "github.com/siddartha1192/bharat-crm-sub009/internal/service/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/outreach"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/reminder"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := telemetry.SetupLogger("bcrm-api", cfg.LogLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create database logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, &cfg.Database, zapLogger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis URL", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	leadRepo := database.NewLeadRepository(db)
	tenantRepo := database.NewTenantRepository(db)
	callRepo := database.NewCallRepository(db)
	sessions := cache.NewRedisSessionStore(redisClient, "callsession", cfg.Redis.SessionTTL)

	transport := telephony.NewClient(cfg.Telephony.AccountSID, cfg.Telephony.AuthToken, logger)

	outreachSvc, err := outreach.NewService(transport, leadRepo, callRepo, cfg.Telephony, logger)
	if err != nil {
		logger.Error("outreach service initialization failed", "error", err)
		os.Exit(1)
	}

	orchestrator := conversationsvc.NewOrchestrator(
		sessions, leadRepo, tenantRepo,
		conversationsvc.NewScriptedResponder(),
		domain.Voice{Name: cfg.Telephony.VoiceName, Language: cfg.Telephony.VoiceLanguage},
		logger,
	)

	sweep := reminder.NewSweepService(tenantRepo, leadRepo, outreachSvc, logger)
	scheduler := reminder.NewScheduler(meteredSweeper{inner: sweep}, func(context.Context) (int, error) {
		return cfg.Reminder.IntervalMinutes, nil
	}, logger)

	if cfg.Reminder.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("reminder scheduler start failed", "error", err)
			os.Exit(1)
		}
	}
	defer scheduler.Stop()

	handler := rest.NewHandler(
		orchestrator, outreachSvc, scheduler,
		cfg.Telephony.CallbackBaseURL,
		promMetrics{}, logger,
		db.HealthCheck,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	)
	server := rest.NewServer(cfg.Server, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

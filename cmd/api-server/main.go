package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clinova/scheduling-engine/internal/api"
	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/config"
	"github.com/clinova/scheduling-engine/internal/db"
	"github.com/clinova/scheduling-engine/internal/observability/metrics"
	redisclient "github.com/clinova/scheduling-engine/internal/redis"
	"github.com/clinova/scheduling-engine/internal/reminder"
	"github.com/clinova/scheduling-engine/internal/scheduling"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	clk := clock.Real()
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	schedRepo := scheduling.NewPgRepository(pgPool)
	scorer := scheduling.NewCachedRiskScorer(
		scheduling.NewRepoRiskScorer(schedRepo), rdb, cfg.RiskCacheTTL, logger)
	suggester := scheduling.NewService(schedRepo, scorer, clk, logger)

	remRepo := reminder.NewPgRepository(pgPool)
	scheduler := reminder.NewScheduler(remRepo, cfg.ReminderOffsets, clk, logger)

	senders := reminder.SenderRegistry{
		reminder.ChannelWhatsapp: reminder.NewHTTPSender(cfg.WhatsappAPIURL, cfg.WhatsappAPIKey, reminder.ChannelWhatsapp, cfg.SendTimeout, logger),
		reminder.ChannelSms:      reminder.NewHTTPSender(cfg.SMSAPIURL, cfg.SMSAPIKey, reminder.ChannelSms, cfg.SendTimeout, logger),
	}
	locker := redisclient.NewRedisRunLocker(rdb, cfg.RunLockTTL)
	worker := reminder.NewWorker(remRepo, senders, locker, clk, engineMetrics, logger, cfg.SendTimeout)
	inbound := reminder.NewIntentRouter(remRepo, clk, engineMetrics, logger)

	router := api.NewRouter(api.RouterConfig{
		Suggester:     suggester,
		Scheduler:     scheduler,
		Runner:        worker,
		Inbound:       inbound,
		PgPool:        pgPool,
		Redis:         rdb,
		Metrics:       engineMetrics,
		Logger:        logger,
		InternalToken: cfg.InternalToken,
		WebhookSecret: cfg.WebhookSecret,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

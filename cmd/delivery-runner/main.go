package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/config"
	"github.com/clinova/scheduling-engine/internal/db"
	redisclient "github.com/clinova/scheduling-engine/internal/redis"
	"github.com/clinova/scheduling-engine/internal/reminder"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

// delivery-runner is the in-process alternative to an external cron hitting
// POST /reminders/run; both paths invoke the same worker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("delivery-runner starting up", "env", cfg.Env, "interval", cfg.RunnerInterval.String())

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

	repo := reminder.NewPgRepository(pgPool)
	senders := reminder.SenderRegistry{
		reminder.ChannelWhatsapp: reminder.NewHTTPSender(cfg.WhatsappAPIURL, cfg.WhatsappAPIKey, reminder.ChannelWhatsapp, cfg.SendTimeout, logger),
		reminder.ChannelSms:      reminder.NewHTTPSender(cfg.SMSAPIURL, cfg.SMSAPIKey, reminder.ChannelSms, cfg.SendTimeout, logger),
	}
	locker := redisclient.NewRedisRunLocker(rdb, cfg.RunLockTTL)
	worker := reminder.NewWorker(repo, senders, locker, clock.Real(), nil, logger, cfg.SendTimeout)

	// Run once at startup
	runOnce(rootCtx, worker, logger)

	ticker := time.NewTicker(cfg.RunnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping delivery runner")
			return
		case <-ticker.C:
			runOnce(rootCtx, worker, logger)
		}
	}
}

func runOnce(ctx context.Context, worker *reminder.Worker, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := worker.RunDue(runCtx)
	if err != nil {
		logger.Error("delivery run error", "error", err)
		return
	}
	logger.Info("delivery run complete",
		"duration", time.Since(start).String(),
		"processed", summary.Processed,
		"delivered", summary.Delivered,
		"retried", summary.Retried,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/scheduling-engine/internal/observability/metrics"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

type RouterConfig struct {
	Suggester     SlotSuggester
	Scheduler     ReminderScheduler
	Runner        DeliveryRunner
	Inbound       InboundHandler
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Metrics       *metrics.EngineMetrics
	Logger        *logging.Logger
	InternalToken string
	WebhookSecret string
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Slot suggestions (read path, called by the booking client)
	r.Get("/slots/suggestions", suggestSlotsHandler(cfg.Suggester, cfg.Metrics))

	// Reminder scheduling (called by the appointment-creation flow)
	r.Post("/reminders", scheduleRemindersHandler(cfg.Scheduler))

	// Delivery run trigger (external cron, shared secret)
	r.With(InternalAuthMiddleware(cfg.InternalToken)).
		Post("/reminders/run", runDeliveriesHandler(cfg.Runner))

	// Inbound replies (channel provider webhook, HMAC signed)
	r.With(WebhookSignatureMiddleware(cfg.WebhookSecret)).
		Post("/webhooks/inbound", inboundWebhookHandler(cfg.Inbound))

	return r
}

package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/observability/metrics"
	"github.com/clinova/scheduling-engine/internal/scheduling"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

// lookbackWindow bounds how old a reminder may be and still receive replies.
const lookbackWindow = 7 * 24 * time.Hour

// InboundMessage is one free-text reply arriving from a channel provider.
type InboundMessage struct {
	From    string
	To      string
	Body    string
	Channel Channel
}

// IntentRouter maps inbound replies onto reminder and appointment state.
// It always produces a reply text, even when applying a transition fails.
type IntentRouter struct {
	repo    Repository
	clock   clock.Clock
	metrics *metrics.EngineMetrics
	logger  *logging.Logger
}

func NewIntentRouter(repo Repository, clk clock.Clock, m *metrics.EngineMetrics, logger *logging.Logger) *IntentRouter {
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentRouter{
		repo:    repo,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// HandleInbound classifies the reply, resolves the most recent reminder for
// the sender, and applies the matching transition. Confirm and Cancel are
// terminal; Rebook only records the request for a human workflow. Unknown
// bodies (and unknown senders) get the help text and touch no state.
func (rt *IntentRouter) HandleInbound(ctx context.Context, msg InboundMessage) string {
	address := strings.TrimSpace(msg.From)
	intent := ClassifyIntent(msg.Body)
	rt.metrics.ObserveIntent(string(intent))

	now := rt.clock.Now()
	rem, err := rt.repo.FindLatestByAddress(ctx, address, now.Add(-lookbackWindow))
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			rt.logger.Debug("inbound from unknown address", "address", address)
			return ReplyHelp
		}
		rt.logger.Error("resolve reminder for inbound", "error", err, "address", address)
		return ReplyError
	}

	if intent == IntentUnknown {
		return ReplyHelp
	}

	reply, err := rt.apply(ctx, rem, intent, msg.Body, now)
	if err != nil {
		rt.logger.Error("apply inbound transition",
			"error", err, "intent", string(intent), "reminder_id", rem.ID)
		rt.auditFailure(ctx, rem.ID, intent, err)
		return ReplyError
	}
	return reply
}

func (rt *IntentRouter) apply(ctx context.Context, rem *Reminder, intent Intent, body string, now time.Time) (string, error) {
	switch intent {
	case IntentConfirm:
		updated, err := rt.repo.MarkConfirmed(ctx, rem.ID, now, body)
		if err != nil {
			if errors.Is(err, ErrStatusConflict) {
				// Already terminal; replying as confirmed is harmless.
				return ReplyConfirmed, nil
			}
			return "", err
		}
		rt.auditTransition(ctx, updated, rem.Status, EventAppointmentConfirmed, body)
		return ReplyConfirmed, nil

	case IntentCancel:
		updated, err := rt.repo.MarkCancelled(ctx, rem.ID, now, body, "patient_reply")
		if err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return ReplyCancelled, nil
			}
			return "", err
		}
		if err := rt.repo.UpdateAppointmentStatus(ctx, rem.AppointmentID, scheduling.StatusScheduled, scheduling.StatusCancelled); err != nil {
			if !errors.Is(err, ErrStatusConflict) {
				return "", err
			}
			rt.logger.Debug("appointment already left scheduled state", "appointment_id", rem.AppointmentID)
		}
		rt.auditTransition(ctx, updated, rem.Status, EventAppointmentCancelled, body)
		return ReplyCancelled, nil

	case IntentRebook:
		updated, err := rt.repo.MarkRebookRequested(ctx, rem.ID, body)
		if err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return ReplyRebook, nil
			}
			return "", err
		}
		rt.auditTransition(ctx, updated, rem.Status, EventRebookRequested, body)
		rt.metrics.ObserveRebookRequest()
		// Rebooking itself is a human workflow; the engine only flags it.
		rt.logger.Info("rebook requested",
			"reminder_id", rem.ID, "appointment_id", rem.AppointmentID)
		return ReplyRebook, nil
	}

	return ReplyHelp, nil
}

func (rt *IntentRouter) auditTransition(ctx context.Context, rem *Reminder, from Status, eventType, body string) {
	payload, err := json.Marshal(map[string]any{
		"reminder_id": rem.ID.String(),
		"inbound":     body,
	})
	if err != nil {
		payload = nil
	}

	if err := rt.repo.InsertLog(ctx, Log{
		ReminderID: rem.ID,
		FromStatus: from,
		ToStatus:   rem.Status,
		Note:       "inbound_reply",
		Metadata:   payload,
	}); err != nil {
		rt.logger.Error("insert reminder log", "error", err, "reminder_id", rem.ID)
	}

	if err := rt.repo.InsertAppointmentEvent(ctx, AppointmentEvent{
		AppointmentID: rem.AppointmentID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		rt.logger.Error("insert appointment event", "error", err, "appointment_id", rem.AppointmentID)
	}
}

// auditFailure records a failed transition attempt so operators can trace
// lost replies back to the reminder.
func (rt *IntentRouter) auditFailure(ctx context.Context, reminderID uuid.UUID, intent Intent, cause error) {
	payload, err := json.Marshal(map[string]any{
		"intent": string(intent),
		"error":  cause.Error(),
	})
	if err != nil {
		payload = nil
	}
	if err := rt.repo.InsertLog(ctx, Log{
		ReminderID: reminderID,
		FromStatus: "",
		ToStatus:   StatusFailed,
		Note:       "inbound_apply_failed",
		Metadata:   payload,
	}); err != nil {
		rt.logger.Error("insert failure log", "error", err, "reminder_id", reminderID)
	}
}

package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/observability/metrics"
	redisclient "github.com/clinova/scheduling-engine/internal/redis"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

const runLockScope = "due-reminders"

// ItemOutcome reports what happened to one reminder during a run.
type ItemOutcome struct {
	ReminderID uuid.UUID `json:"reminder_id"`
	Channel    Channel   `json:"channel"`
	Status     Status    `json:"status,omitempty"`
	Attempt    int       `json:"attempt"`
	Detail     string    `json:"detail,omitempty"`
}

// RunSummary is the result of one delivery run invocation.
type RunSummary struct {
	Processed int           `json:"processed"`
	Delivered int           `json:"delivered"`
	Retried   int           `json:"retried"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Outcomes  []ItemOutcome `json:"outcomes"`
}

// Worker drives the outbound half of the reminder state machine. Invocations
// are short-lived and stateless; the periodic trigger lives outside the
// engine. Overlapping invocations are safe: the run lock sheds duplicate
// triggers cheaply and the per item claim guarantees each attempt slot is
// sent at most once.
type Worker struct {
	repo        Repository
	senders     SenderRegistry
	locker      redisclient.Locker
	clock       clock.Clock
	metrics     *metrics.EngineMetrics
	logger      *logging.Logger
	sendTimeout time.Duration
}

func NewWorker(repo Repository, senders SenderRegistry, locker redisclient.Locker, clk clock.Clock, m *metrics.EngineMetrics, logger *logging.Logger, sendTimeout time.Duration) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		repo:        repo,
		senders:     senders,
		locker:      locker,
		clock:       clk,
		metrics:     m,
		logger:      logger,
		sendTimeout: sendTimeout,
	}
}

// RunDue selects every reminder whose scheduled_at has passed and attempts
// delivery, persisting the resulting transition per item. One item's failure
// never aborts the batch.
func (w *Worker) RunDue(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{Outcomes: []ItemOutcome{}}

	start := w.clock.Now()
	err := w.locker.WithRunLock(ctx, runLockScope, func(ctx context.Context) error {
		return w.runLocked(ctx, summary)
	})
	w.metrics.ObserveRunDuration(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another invocation owns this run; nothing to do.
			w.logger.Debug("delivery run already in progress, skipping")
			return summary, nil
		}
		return nil, err
	}

	return summary, nil
}

func (w *Worker) runLocked(ctx context.Context, summary *RunSummary) error {
	now := w.clock.Now()
	due, err := w.repo.FindDue(ctx, now)
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, rem := range due {
		outcome := w.processOne(ctx, rem)
		summary.Processed++
		summary.Outcomes = append(summary.Outcomes, outcome)

		switch outcome.Status {
		case StatusDelivered:
			summary.Delivered++
		case StatusScheduled:
			summary.Retried++
		case StatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	return nil
}

// processOne claims, sends, and records one reminder. Always returns an
// outcome; errors are folded into it so the batch continues.
func (w *Worker) processOne(ctx context.Context, rem Reminder) ItemOutcome {
	// Optimistic guard: a concurrent invocation may have advanced this row
	// since FindDue. Claiming is a conditional scheduled->sent update.
	claimed, err := w.repo.ClaimForSend(ctx, rem.ID)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			w.logger.Debug("reminder already claimed by another run", "reminder_id", rem.ID)
			return ItemOutcome{ReminderID: rem.ID, Channel: rem.Channel, Detail: "already claimed"}
		}
		w.logger.Error("claim reminder", "error", err, "reminder_id", rem.ID)
		return ItemOutcome{ReminderID: rem.ID, Channel: rem.Channel, Detail: err.Error()}
	}

	pref, err := w.repo.GetPreferenceForAppointment(ctx, claimed.OrgID, claimed.AppointmentID)
	if err != nil {
		if !errors.Is(err, ErrPreferenceNotFound) {
			w.logger.Error("load preference", "error", err, "reminder_id", claimed.ID)
		}
		def := DefaultPreference(claimed.OrgID, uuid.Nil)
		pref = &def
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	sendErr := w.senders.Send(sendCtx, claimed.Channel, OutboundMessage{
		OrgID:      claimed.OrgID,
		ReminderID: claimed.ID,
		To:         claimed.Address,
		Body:       claimed.Body,
	})
	cancel()

	now := w.clock.Now()
	attemptOutcome := classify(sendErr)
	tr := NextAttemptState(*pref, *claimed, attemptOutcome, now)

	var sentAt *time.Time
	if attemptOutcome == OutcomeDelivered {
		sentAt = &now
	}

	updated, err := w.repo.RecordAttemptResult(ctx, claimed.ID, tr, sentAt)
	if err != nil {
		w.logger.Error("record attempt result", "error", err, "reminder_id", claimed.ID)
		return ItemOutcome{ReminderID: claimed.ID, Channel: claimed.Channel, Status: StatusSent, Attempt: claimed.AttemptCount, Detail: err.Error()}
	}

	w.metrics.ObserveDelivery(string(claimed.Channel), string(attemptOutcome))
	w.auditAttempt(ctx, claimed, tr, attemptOutcome, sendErr)

	detail := ""
	if sendErr != nil {
		detail = sendErr.Error()
	}
	return ItemOutcome{
		ReminderID: updated.ID,
		Channel:    claimed.Channel,
		Status:     updated.Status,
		Attempt:    updated.AttemptCount,
		Detail:     detail,
	}
}

func classify(err error) AttemptOutcome {
	if err == nil {
		return OutcomeDelivered
	}
	if IsTransient(err) {
		return OutcomeTransientFailure
	}
	return OutcomeTerminalFailure
}

func (w *Worker) auditAttempt(ctx context.Context, claimed *Reminder, tr Transition, outcome AttemptOutcome, sendErr error) {
	payload := map[string]any{
		"attempt": claimed.AttemptCount,
		"channel": claimed.Channel,
		"outcome": outcome,
	}
	if sendErr != nil {
		payload["error"] = sendErr.Error()
	}
	if tr.NextScheduledAt != nil {
		payload["next_scheduled_at"] = tr.NextScheduledAt
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("marshal attempt audit payload", "error", err, "reminder_id", claimed.ID)
		data = nil
	}

	if err := w.repo.InsertLog(ctx, Log{
		ReminderID: claimed.ID,
		FromStatus: StatusSent,
		ToStatus:   tr.Status,
		Note:       string(outcome),
		Metadata:   data,
	}); err != nil {
		w.logger.Error("insert reminder log", "error", err, "reminder_id", claimed.ID)
	}

	eventType := EventReminderDelivered
	if tr.Status == StatusFailed {
		eventType = EventReminderFailed
	}
	if tr.Status == StatusDelivered || tr.Terminal {
		if err := w.repo.InsertAppointmentEvent(ctx, AppointmentEvent{
			AppointmentID: claimed.AppointmentID,
			EventType:     eventType,
			Payload:       data,
		}); err != nil {
			w.logger.Error("insert appointment event", "error", err, "appointment_id", claimed.AppointmentID)
		}
	}
}

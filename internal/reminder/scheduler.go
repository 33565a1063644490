package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/scheduling"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

var ErrAppointmentNotSchedulable = errors.New("appointment is not in a schedulable state")

// Scheduler creates reminders when the booking flow reports a new
// appointment. Offsets come from configuration (for example 24h and 2h
// before the start), not from the engine itself.
type Scheduler struct {
	repo    Repository
	offsets []time.Duration
	clock   clock.Clock
	logger  *logging.Logger
}

func NewScheduler(repo Repository, offsets []time.Duration, clk clock.Clock, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:    repo,
		offsets: offsets,
		clock:   clk,
		logger:  logger,
	}
}

type ScheduleRequest struct {
	OrgID         uuid.UUID
	AppointmentID uuid.UUID
	Address       string
	Channel       Channel // optional; defaults to the preference's first priority
	Body          string
}

// ScheduleForAppointment plans and persists the reminders for one
// appointment. Each reminder starts in scheduled state with zero attempts.
func (s *Scheduler) ScheduleForAppointment(ctx context.Context, req ScheduleRequest) ([]Reminder, error) {
	appt, err := s.repo.GetAppointment(ctx, req.OrgID, req.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != scheduling.StatusScheduled {
		return nil, ErrAppointmentNotSchedulable
	}

	pref, err := s.repo.GetPreference(ctx, req.OrgID, appt.ProviderID)
	if err != nil {
		if !errors.Is(err, ErrPreferenceNotFound) {
			return nil, fmt.Errorf("load preference: %w", err)
		}
		def := DefaultPreference(req.OrgID, appt.ProviderID)
		pref = &def
		s.logger.Info("provider has no reminder preference, using defaults",
			"provider_id", appt.ProviderID)
	}

	now := s.clock.Now()
	sendTimes, err := PlanSendTimes(appt.StartsAt, *pref, s.offsets, now)
	if err != nil {
		return nil, fmt.Errorf("plan send times: %w", err)
	}
	if len(sendTimes) == 0 {
		return []Reminder{}, nil
	}

	channel := req.Channel
	if channel == "" && len(pref.ChannelPriority) > 0 {
		channel = pref.ChannelPriority[0]
	}

	reminders := make([]Reminder, 0, len(sendTimes))
	for _, at := range sendTimes {
		reminders = append(reminders, Reminder{
			OrgID:         req.OrgID,
			AppointmentID: req.AppointmentID,
			Address:       req.Address,
			Channel:       channel,
			Body:          req.Body,
			ScheduledAt:   at,
		})
	}

	created, err := s.repo.CreateReminders(ctx, reminders)
	if err != nil {
		return nil, fmt.Errorf("create reminders: %w", err)
	}

	for _, rem := range created {
		s.audit(ctx, rem.ID, "", StatusScheduled, "planned", map[string]any{
			"appointment_id": req.AppointmentID.String(),
			"scheduled_at":   rem.ScheduledAt,
		})
	}

	return created, nil
}

// audit appends a reminder log row, best effort: a failed audit write never
// fails the operation it describes.
func (s *Scheduler) audit(ctx context.Context, reminderID uuid.UUID, from, to Status, note string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal audit payload", "error", err, "reminder_id", reminderID)
		data = nil
	}
	if err := s.repo.InsertLog(ctx, Log{
		ReminderID: reminderID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		Metadata:   data,
	}); err != nil {
		s.logger.Error("insert reminder log", "error", err, "reminder_id", reminderID)
	}
}

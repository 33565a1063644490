package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/scheduling"
)

var (
	ErrReminderNotFound    = errors.New("reminder not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPreferenceNotFound  = errors.New("reminder preference not found")
	// ErrStatusConflict means a conditional status update matched no row:
	// another invocation already advanced the reminder.
	ErrStatusConflict = errors.New("reminder status already advanced")
)

// Repository contains all DB interactions for the reminder pipeline. Only
// the delivery worker (outbound path) and the inbound intent router write
// reminder status.
type Repository interface {
	GetAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (*scheduling.Appointment, error)
	GetPreference(ctx context.Context, orgID, providerID uuid.UUID) (*Preference, error)
	GetPreferenceForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (*Preference, error)

	CreateReminders(ctx context.Context, reminders []Reminder) ([]Reminder, error)

	// Delivery worker path.
	FindDue(ctx context.Context, now time.Time) ([]Reminder, error)
	// ClaimForSend is the optimistic guard: conditional scheduled->sent
	// update that also increments attempt_count. ErrStatusConflict when the
	// row was already advanced by a concurrent run.
	ClaimForSend(ctx context.Context, id uuid.UUID) (*Reminder, error)
	RecordAttemptResult(ctx context.Context, id uuid.UUID, tr Transition, sentAt *time.Time) (*Reminder, error)

	// Inbound path. FindLatestByAddress resolves the newest reminder for a
	// sender address created at or after since.
	FindLatestByAddress(ctx context.Context, address string, since time.Time) (*Reminder, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time, inboundBody string) (*Reminder, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, inboundBody, reason string) (*Reminder, error)
	MarkRebookRequested(ctx context.Context, id uuid.UUID, inboundBody string) (*Reminder, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to scheduling.AppointmentStatus) error

	// Audit, append-only.
	InsertLog(ctx context.Context, entry Log) error
	InsertAppointmentEvent(ctx context.Context, ev AppointmentEvent) error
}

package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/scheduling-engine/internal/scheduling"
)

const reminderColumns = `
	id, org_id, appointment_id, address, channel, status, body,
	attempt_count, scheduled_at, sent_at, confirmed_at, cancelled_at,
	last_inbound_message, cancel_reason, created_at, updated_at`

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// NewPgRepositoryWithPool accepts any PgxPool, used by tests.
func NewPgRepositoryWithPool(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder

	err := row.Scan(
		&r.ID,
		&r.OrgID,
		&r.AppointmentID,
		&r.Address,
		&r.Channel,
		&r.Status,
		&r.Body,
		&r.AttemptCount,
		&r.ScheduledAt,
		&r.SentAt,
		&r.ConfirmedAt,
		&r.CancelledAt,
		&r.LastInboundMessage,
		&r.CancelReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}

	return &r, nil
}

func scanPreference(row pgx.Row) (*Preference, error) {
	var p Preference
	var days []int32
	var channels []string

	err := row.Scan(
		&p.OrgID,
		&p.ProviderID,
		&p.Timezone,
		&p.WindowStart,
		&p.WindowEnd,
		&days,
		&channels,
		&p.MaxRetries,
		&p.RetryBackoffMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferenceNotFound
		}
		return nil, err
	}

	p.DaysOfWeek = make([]int, 0, len(days))
	for _, d := range days {
		p.DaysOfWeek = append(p.DaysOfWeek, int(d))
	}
	p.ChannelPriority = make([]Channel, 0, len(channels))
	for _, c := range channels {
		p.ChannelPriority = append(p.ChannelPriority, Channel(c))
	}

	return &p, nil
}

// Interface methods

func (r *PgRepository) GetAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (*scheduling.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, provider_id, patient_id, starts_at, ends_at, status, created_at, updated_at
		FROM appointments
		WHERE org_id = $1 AND id = $2
	`, orgID, appointmentID)

	var a scheduling.Appointment
	err := row.Scan(
		&a.ID,
		&a.OrgID,
		&a.ProviderID,
		&a.PatientID,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) GetPreference(ctx context.Context, orgID, providerID uuid.UUID) (*Preference, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT org_id, provider_id, timezone, window_start, window_end,
		       days_of_week, channel_priority, max_retries, retry_backoff_minutes
		FROM reminder_preferences
		WHERE org_id = $1 AND provider_id = $2
	`, orgID, providerID)
	return scanPreference(row)
}

func (r *PgRepository) GetPreferenceForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (*Preference, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT p.org_id, p.provider_id, p.timezone, p.window_start, p.window_end,
		       p.days_of_week, p.channel_priority, p.max_retries, p.retry_backoff_minutes
		FROM reminder_preferences p
		JOIN appointments a ON a.provider_id = p.provider_id AND a.org_id = p.org_id
		WHERE a.org_id = $1 AND a.id = $2
	`, orgID, appointmentID)
	return scanPreference(row)
}

func (r *PgRepository) CreateReminders(ctx context.Context, reminders []Reminder) ([]Reminder, error) {
	out := make([]Reminder, 0, len(reminders))
	for _, rem := range reminders {
		id := rem.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		row := r.pool.QueryRow(ctx, `
			INSERT INTO reminders (id, org_id, appointment_id, address, channel, status, body,
			                       attempt_count, scheduled_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, 0, $7, now(), now())
			RETURNING`+reminderColumns, id, rem.OrgID, rem.AppointmentID, rem.Address, rem.Channel, rem.Body, rem.ScheduledAt)
		created, err := scanReminder(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *created)
	}
	return out, nil
}

func (r *PgRepository) FindDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+reminderColumns+`
		FROM reminders
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}

	return result, rows.Err()
}

func (r *PgRepository) ClaimForSend(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = 'sent',
		    attempt_count = attempt_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING`+reminderColumns, id)

	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return rem, nil
}

func (r *PgRepository) RecordAttemptResult(ctx context.Context, id uuid.UUID, tr Transition, sentAt *time.Time) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = $2,
		    attempt_count = $3,
		    scheduled_at = COALESCE($4, scheduled_at),
		    channel = $5,
		    sent_at = COALESCE($6, sent_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'sent'
		RETURNING`+reminderColumns, id, tr.Status, tr.AttemptCount, tr.NextScheduledAt, tr.NextChannel, sentAt)

	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return rem, nil
}

func (r *PgRepository) FindLatestByAddress(ctx context.Context, address string, since time.Time) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+reminderColumns+`
		FROM reminders
		WHERE address = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, address, since)
	return scanReminder(row)
}

func (r *PgRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time, inboundBody string) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = 'confirmed',
		    confirmed_at = $2,
		    last_inbound_message = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('confirmed', 'cancelled')
		RETURNING`+reminderColumns, id, at, inboundBody)

	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return rem, nil
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time, inboundBody, reason string) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = 'cancelled',
		    cancelled_at = $2,
		    last_inbound_message = $3,
		    cancel_reason = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('confirmed', 'cancelled')
		RETURNING`+reminderColumns, id, at, inboundBody, reason)

	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return rem, nil
}

func (r *PgRepository) MarkRebookRequested(ctx context.Context, id uuid.UUID, inboundBody string) (*Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reminders
		SET status = 'rebook_requested',
		    last_inbound_message = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('confirmed', 'cancelled')
		RETURNING`+reminderColumns, id, inboundBody)

	rem, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return rem, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to scheduling.AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
	`, id, to, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *PgRepository) InsertLog(ctx context.Context, entry Log) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_logs (reminder_id, from_status, to_status, note, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, entry.ReminderID, entry.FromStatus, entry.ToStatus, entry.Note, entry.Metadata)
	return err
}

func (r *PgRepository) InsertAppointmentEvent(ctx context.Context, ev AppointmentEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (appointment_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, ev.AppointmentID, ev.EventType, ev.Payload)
	return err
}

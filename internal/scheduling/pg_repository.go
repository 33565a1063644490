package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
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

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

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
		return nil, err
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, orgID, providerID uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, specialty, created_at, updated_at
		FROM providers
		WHERE org_id = $1 AND id = $2
	`, orgID, providerID)
	return scanProvider(row)
}

func (r *PgRepository) ListRulesForWeekday(ctx context.Context, orgID, providerID uuid.UUID, weekday int) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, provider_id, weekday, start_time, end_time, slot_granularity_minutes, timezone
		FROM availability_rules
		WHERE org_id = $1 AND provider_id = $2 AND weekday = $3
		ORDER BY start_time
	`, orgID, providerID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		var rule AvailabilityRule
		if err := rows.Scan(
			&rule.ID,
			&rule.OrgID,
			&rule.ProviderID,
			&rule.Weekday,
			&rule.StartTime,
			&rule.EndTime,
			&rule.SlotGranularityMinutes,
			&rule.Timezone,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListOverridesForDate(ctx context.Context, orgID, providerID uuid.UUID, date time.Time) ([]DateOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, provider_id, date, kind, start_time, end_time
		FROM date_overrides
		WHERE org_id = $1 AND provider_id = $2 AND date = $3
		ORDER BY start_time
	`, orgID, providerID, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DateOverride
	for rows.Next() {
		var ov DateOverride
		if err := rows.Scan(
			&ov.ID,
			&ov.OrgID,
			&ov.ProviderID,
			&ov.Date,
			&ov.Kind,
			&ov.StartTime,
			&ov.EndTime,
		); err != nil {
			return nil, err
		}
		result = append(result, ov)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, orgID, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, provider_id, patient_id, starts_at, ends_at, status, created_at, updated_at
		FROM appointments
		WHERE org_id = $1 AND provider_id = $2
		  AND starts_at < $4 AND ends_at > $3
		ORDER BY starts_at
	`, orgID, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetNoShowScore(ctx context.Context, orgID, patientID uuid.UUID) (*NoShowScore, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT org_id, patient_id, score, updated_at
		FROM no_show_scores
		WHERE org_id = $1 AND patient_id = $2
	`, orgID, patientID)

	var s NoShowScore
	err := row.Scan(&s.OrgID, &s.PatientID, &s.Score, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoShowScoreNotFound
		}
		return nil, err
	}
	return &s, nil
}

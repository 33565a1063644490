package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrNoShowScoreNotFound = errors.New("no-show score not found")
)

// Repository contains all DB interactions needed by the suggestion service.
// Every query is scoped by org id.
type Repository interface {
	GetProviderByID(ctx context.Context, orgID, providerID uuid.UUID) (*Provider, error)

	ListRulesForWeekday(ctx context.Context, orgID, providerID uuid.UUID, weekday int) ([]AvailabilityRule, error)
	ListOverridesForDate(ctx context.Context, orgID, providerID uuid.UUID, date time.Time) ([]DateOverride, error)

	// For collision checks and the preceding-gap bonus.
	ListAppointmentsBetween(ctx context.Context, orgID, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	GetNoShowScore(ctx context.Context, orgID, patientID uuid.UUID) (*NoShowScore, error)
}

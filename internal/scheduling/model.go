package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Occupies reports whether an appointment in this status blocks new bookings.
func (s AppointmentStatus) Occupies() bool {
	return s == StatusScheduled || s == StatusCompleted
}

type OverrideKind string

const (
	OverrideBlock OverrideKind = "block"
	OverrideExtra OverrideKind = "extra"
)

type Provider struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityRule is a recurring weekly open window for one provider.
// Weekday follows ISO numbering, Monday = 1 through Sunday = 7. Start and end
// are local wall times in HH:MM form, interpreted in the rule's timezone.
type AvailabilityRule struct {
	ID                     uuid.UUID
	OrgID                  uuid.UUID
	ProviderID             uuid.UUID
	Weekday                int
	StartTime              string
	EndTime                string
	SlotGranularityMinutes int
	Timezone               string
}

// DateOverride adjusts availability for one exact calendar date. Block
// removes time; when any Extra exists for a date the open set is restricted
// to the union of the Extra windows.
type DateOverride struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time // date component only
	Kind       OverrideKind
	StartTime  string
	EndTime    string
}

type Appointment struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	StartsAt   time.Time
	EndsAt     time.Time
	Status     AppointmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NoShowScore struct {
	OrgID     uuid.UUID
	PatientID uuid.UUID
	Score     int // 0-100
	UpdatedAt time.Time
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses the half-open test: a shared instant does not count.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// OpenWindow is an open interval together with the slot granularity of the
// rule that produced it. The generator steps per window, so overlapping
// rules simply yield duplicate candidates that are deduplicated later.
type OpenWindow struct {
	Interval
	GranularityMinutes int
}

// CandidateSlot is an ephemeral ranked suggestion; it is never persisted.
type CandidateSlot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Score   int       `json:"score"`
	Reasons []string  `json:"reasons"`
}

package reminder

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelWhatsapp Channel = "whatsapp"
	ChannelSms      Channel = "sms"
)

// ValidChannel reports whether the string names a supported channel.
func ValidChannel(c Channel) bool {
	return c == ChannelWhatsapp || c == ChannelSms
}

type Status string

const (
	StatusScheduled       Status = "scheduled"
	StatusSent            Status = "sent"
	StatusDelivered       Status = "delivered"
	StatusFailed          Status = "failed"
	StatusConfirmed       Status = "confirmed"
	StatusCancelled       Status = "cancelled"
	StatusRebookRequested Status = "rebook_requested"
)

// Terminal reports whether a reminder in this status may never re-enter the
// outbound pipeline. Delivered is deliberately not terminal: it waits for an
// inbound reply, and no auto-expiry policy exists.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Reminder is one scheduled outbound notification tied to one appointment
// and one channel. An appointment commonly carries several (24h and 2h
// before, per the configured offsets).
type Reminder struct {
	ID                 uuid.UUID
	OrgID              uuid.UUID
	AppointmentID      uuid.UUID
	Address            string
	Channel            Channel
	Status             Status
	Body               string
	AttemptCount       int
	ScheduledAt        time.Time
	SentAt             *time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	LastInboundMessage *string
	CancelReason       *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Preference is a provider's notification policy: when reminders may be
// sent, over which channels, and how hard to retry.
type Preference struct {
	OrgID               uuid.UUID
	ProviderID          uuid.UUID
	Timezone            string
	WindowStart         string // HH:MM local
	WindowEnd           string // HH:MM local
	DaysOfWeek          []int  // ISO weekday numbers, Mon=1
	ChannelPriority     []Channel
	MaxRetries          int
	RetryBackoffMinutes int
}

// DefaultPreference is used when a provider never configured one.
func DefaultPreference(orgID, providerID uuid.UUID) Preference {
	return Preference{
		OrgID:               orgID,
		ProviderID:          providerID,
		Timezone:            "America/Mexico_City",
		WindowStart:         "09:00",
		WindowEnd:           "21:00",
		DaysOfWeek:          []int{1, 2, 3, 4, 5, 6, 7},
		ChannelPriority:     []Channel{ChannelWhatsapp, ChannelSms},
		MaxRetries:          3,
		RetryBackoffMinutes: 30,
	}
}

// NextChannel returns the entry after current in the priority list, wrapping
// when exhausted. Unknown current falls back to the first entry.
func (p Preference) NextChannel(current Channel) Channel {
	if len(p.ChannelPriority) == 0 {
		return current
	}
	for i, c := range p.ChannelPriority {
		if c == current {
			return p.ChannelPriority[(i+1)%len(p.ChannelPriority)]
		}
	}
	return p.ChannelPriority[0]
}

// Log is an append-only audit row for one reminder status transition.
type Log struct {
	ID         int64
	ReminderID uuid.UUID
	FromStatus Status
	ToStatus   Status
	Note       string
	Metadata   []byte
	CreatedAt  time.Time
}

// AppointmentEvent is an append-only audit row on the appointment itself.
type AppointmentEvent struct {
	ID            int64
	AppointmentID uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

const (
	EventReminderScheduled    = "REMINDER_SCHEDULED"
	EventReminderDelivered    = "REMINDER_DELIVERED"
	EventReminderFailed       = "REMINDER_FAILED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventRebookRequested      = "REBOOK_REQUESTED"
)

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/scheduling"
)

type SuggestionsResponse struct {
	Slots []scheduling.CandidateSlot `json:"slots"`
}

type ScheduleRemindersRequest struct {
	OrgID         string `json:"org_id"`
	AppointmentID string `json:"appointment_id"`
	Address       string `json:"address"`
	Channel       string `json:"channel,omitempty"`
	Body          string `json:"body"`
}

type ScheduledReminder struct {
	ID          uuid.UUID `json:"id"`
	Channel     string    `json:"channel"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ScheduleRemindersResponse struct {
	Reminders []ScheduledReminder `json:"reminders"`
}

type InboundWebhookRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Body    string `json:"body"`
	Channel string `json:"channel,omitempty"`
}

type InboundWebhookResponse struct {
	Reply string `json:"reply"`
}

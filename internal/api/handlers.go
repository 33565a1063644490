package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/observability/metrics"
	"github.com/clinova/scheduling-engine/internal/reminder"
	"github.com/clinova/scheduling-engine/internal/scheduling"
)

// Service interfaces consumed by the handlers; the concrete implementations
// live in internal/scheduling and internal/reminder.
type SlotSuggester interface {
	SuggestSlots(ctx context.Context, req scheduling.SuggestionRequest) ([]scheduling.CandidateSlot, error)
}

type ReminderScheduler interface {
	ScheduleForAppointment(ctx context.Context, req reminder.ScheduleRequest) ([]reminder.Reminder, error)
}

type DeliveryRunner interface {
	RunDue(ctx context.Context) (*reminder.RunSummary, error)
}

type InboundHandler interface {
	HandleInbound(ctx context.Context, msg reminder.InboundMessage) string
}

func suggestSlotsHandler(svc SlotSuggester, m *metrics.EngineMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query()

		orgID, err := uuid.Parse(q.Get("org_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "org_id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(q.Get("provider_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "provider_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "date must be YYYY-MM-DD")
			return
		}
		tz := q.Get("timezone")
		if tz == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "timezone is required")
			return
		}

		req := scheduling.SuggestionRequest{
			OrgID:           orgID,
			ProviderID:      providerID,
			Date:            date,
			Timezone:        tz,
			DurationMinutes: intParam(q.Get("duration_minutes"), 30),
			LeadTimeMinutes: intParam(q.Get("lead_time_minutes"), 0),
			Limit:           intParam(q.Get("limit"), 0),
		}
		if raw := q.Get("patient_id"); raw != "" {
			patientID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, CodeBadRequest, "patient_id must be a valid UUID")
				return
			}
			req.PatientID = &patientID
		}

		slots, err := svc.SuggestSlots(r.Context(), req)
		if err != nil {
			handleSuggestError(w, err)
			return
		}

		m.ObserveSuggestDuration(time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, SuggestionsResponse{Slots: slots})
	}
}

func scheduleRemindersHandler(svc ReminderScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRemindersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "could not parse JSON")
			return
		}

		orgID, err := uuid.Parse(req.OrgID)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "org_id must be a valid UUID")
			return
		}
		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "appointment_id must be a valid UUID")
			return
		}
		if req.Address == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "address is required")
			return
		}
		channel := reminder.Channel(req.Channel)
		if req.Channel != "" && !reminder.ValidChannel(channel) {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "channel must be whatsapp or sms")
			return
		}

		created, err := svc.ScheduleForAppointment(r.Context(), reminder.ScheduleRequest{
			OrgID:         orgID,
			AppointmentID: appointmentID,
			Address:       req.Address,
			Channel:       channel,
			Body:          req.Body,
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := ScheduleRemindersResponse{Reminders: make([]ScheduledReminder, 0, len(created))}
		for _, rem := range created {
			resp.Reminders = append(resp.Reminders, ScheduledReminder{
				ID:          rem.ID,
				Channel:     string(rem.Channel),
				ScheduledAt: rem.ScheduledAt,
			})
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func runDeliveriesHandler(runner DeliveryRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := runner.RunDue(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, CodeDBError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func inboundWebhookHandler(handler InboundHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InboundWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "could not parse JSON")
			return
		}
		if req.From == "" {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "from is required")
			return
		}

		reply := handler.HandleInbound(r.Context(), reminder.InboundMessage{
			From:    req.From,
			To:      req.To,
			Body:    req.Body,
			Channel: reminder.Channel(req.Channel),
		})

		writeJSON(w, http.StatusOK, InboundWebhookResponse{Reply: reply})
	}
}

func handleSuggestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeDBError, err.Error())
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reminder.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, reminder.ErrAppointmentNotSchedulable):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeDBError, err.Error())
	}
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return def
}

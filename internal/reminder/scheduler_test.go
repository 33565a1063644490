package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/internal/scheduling"
)

func newSchedulerFixture(now, startsAt time.Time) (*Scheduler, *memRepo, ScheduleRequest) {
	repo := newMemRepo()
	orgID := uuid.New()
	providerID := uuid.New()
	apptID := uuid.New()
	repo.appointments[apptID] = &scheduling.Appointment{
		ID:         apptID,
		OrgID:      orgID,
		ProviderID: providerID,
		StartsAt:   startsAt,
		EndsAt:     startsAt.Add(30 * time.Minute),
		Status:     scheduling.StatusScheduled,
	}
	pref := utcPref()
	pref.OrgID = orgID
	pref.ProviderID = providerID
	repo.preferences[providerID] = &pref

	sched := NewScheduler(repo, []time.Duration{24 * time.Hour, 2 * time.Hour}, &clock.Fixed{T: now}, nil)
	req := ScheduleRequest{
		OrgID:         orgID,
		AppointmentID: apptID,
		Address:       "+5215512345678",
		Body:          "Tienes cita el viernes a las 12:00.",
	}
	return sched, repo, req
}

func TestScheduleForAppointmentCreatesOnePerOffset(t *testing.T) {
	startsAt := friday(12, 0)
	now := startsAt.AddDate(0, 0, -3)
	sched, repo, req := newSchedulerFixture(now, startsAt)

	created, err := sched.ScheduleForAppointment(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, startsAt.Add(-24*time.Hour), created[0].ScheduledAt)
	assert.Equal(t, startsAt.Add(-2*time.Hour), created[1].ScheduledAt)
	for _, r := range created {
		assert.Equal(t, StatusScheduled, repo.get(r.ID).Status)
		assert.Equal(t, ChannelWhatsapp, r.Channel, "defaults to the first channel priority")
		assert.Zero(t, r.AttemptCount)
	}
	assert.Len(t, repo.logs, 2, "one audit row per created reminder")
}

func TestScheduleForAppointmentExplicitChannelWins(t *testing.T) {
	startsAt := friday(12, 0)
	sched, _, req := newSchedulerFixture(startsAt.AddDate(0, 0, -3), startsAt)
	req.Channel = ChannelSms

	created, err := sched.ScheduleForAppointment(context.Background(), req)
	require.NoError(t, err)
	for _, r := range created {
		assert.Equal(t, ChannelSms, r.Channel)
	}
}

func TestScheduleForAppointmentMissingPreferenceUsesDefaults(t *testing.T) {
	startsAt := friday(12, 0)
	now := startsAt.AddDate(0, 0, -3)
	sched, repo, req := newSchedulerFixture(now, startsAt)
	for k := range repo.preferences {
		delete(repo.preferences, k)
	}

	created, err := sched.ScheduleForAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, created)
}

func TestScheduleForAppointmentUnknownAppointment(t *testing.T) {
	sched, _, req := newSchedulerFixture(friday(9, 0), friday(12, 0))
	req.AppointmentID = uuid.New()

	_, err := sched.ScheduleForAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestScheduleForAppointmentRejectsNonScheduled(t *testing.T) {
	startsAt := friday(12, 0)
	sched, repo, req := newSchedulerFixture(startsAt.AddDate(0, 0, -3), startsAt)
	repo.appointments[req.AppointmentID].Status = scheduling.StatusCancelled

	_, err := sched.ScheduleForAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrAppointmentNotSchedulable)
}

func TestScheduleForAppointmentAllOffsetsDropped(t *testing.T) {
	startsAt := friday(12, 0)
	now := startsAt.Add(-time.Minute) // everything re-bases past the start
	sched, repo, req := newSchedulerFixture(now, startsAt)
	pref := repo.preferences[repo.appointments[req.AppointmentID].ProviderID]
	pref.WindowStart = "12:00"

	created, err := sched.ScheduleForAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, repo.logs)
}

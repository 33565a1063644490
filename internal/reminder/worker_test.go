package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/scheduling-engine/internal/clock"
	redisclient "github.com/clinova/scheduling-engine/internal/redis"
)

func newTestWorker(repo *memRepo, sender Sender, now time.Time) *Worker {
	senders := SenderRegistry{ChannelWhatsapp: sender, ChannelSms: sender}
	return NewWorker(repo, senders, passthroughLocker{}, &clock.Fixed{T: now}, nil, nil, time.Second)
}

func seedDue(repo *memRepo, now time.Time) Reminder {
	return repo.addReminder(Reminder{
		OrgID:         uuid.New(),
		AppointmentID: uuid.New(),
		Address:       "+5215512345678",
		Channel:       ChannelWhatsapp,
		Status:        StatusScheduled,
		Body:          "Recordatorio de tu cita mañana a las 10:00.",
		ScheduledAt:   now.Add(-time.Minute),
	})
}

func TestRunDueDeliversDueReminder(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	sender := &scriptedSender{}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Delivered)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, rem.Address, sender.calls[0].To)

	stored := repo.get(rem.ID)
	assert.Equal(t, StatusDelivered, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.SentAt)
	assert.Equal(t, now, *stored.SentAt)
	assert.NotEmpty(t, repo.logs)
}

func TestRunDueIgnoresFutureReminders(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	repo.addReminder(Reminder{
		Status:      StatusScheduled,
		Channel:     ChannelWhatsapp,
		ScheduledAt: now.Add(time.Hour),
	})
	sender := &scriptedSender{}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Empty(t, sender.calls)
}

func TestRunDueTransientFailureReschedules(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	sender := &scriptedSender{errs: []error{&DeliveryError{Transient: true, StatusCode: 503, Message: "gateway down"}}}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)

	stored := repo.get(rem.ID)
	assert.Equal(t, StatusScheduled, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, ChannelSms, stored.Channel, "retry moves to the next channel in priority")
	assert.Equal(t, now.Add(30*time.Minute), stored.ScheduledAt)
}

func TestRunDueTerminalFailureBurnsAttempts(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	sender := &scriptedSender{errs: []error{&DeliveryError{Transient: false, StatusCode: 400, Message: "invalid recipient"}}}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	stored := repo.get(rem.ID)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, DefaultPreference(uuid.Nil, uuid.Nil).MaxRetries+1, stored.AttemptCount)
	assert.Nil(t, stored.SentAt)
}

func TestRunDueExhaustsRetriesAcrossRuns(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	maxAttempts := DefaultPreference(uuid.Nil, uuid.Nil).MaxRetries + 1

	clk := &clock.Fixed{T: now}
	sender := &scriptedSender{}
	worker := NewWorker(repo, SenderRegistry{ChannelWhatsapp: sender, ChannelSms: sender},
		passthroughLocker{}, clk, nil, nil, time.Second)

	for i := 0; i < maxAttempts; i++ {
		sender.errs = []error{&DeliveryError{Transient: true, StatusCode: 500}}
		clk.T = repo.get(rem.ID).ScheduledAt.Add(time.Second)
		_, err := worker.RunDue(context.Background())
		require.NoError(t, err)
	}

	stored := repo.get(rem.ID)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, maxAttempts, stored.AttemptCount)
	assert.Len(t, sender.calls, maxAttempts, "exactly max_retries+1 attempts, never more")

	// One more run must not touch it.
	clk.T = clk.T.Add(24 * time.Hour)
	summary, err := worker.RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestRunDueClaimConflictIsNoop(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	repo.claimErr = ErrStatusConflict
	sender := &scriptedSender{}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, sender.calls, "a lost claim never reaches the provider")
	assert.Equal(t, StatusScheduled, repo.get(rem.ID).Status)
}

func TestRunDueOneFailureDoesNotAbortBatch(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	first := seedDue(repo, now.Add(-2*time.Minute))
	second := seedDue(repo, now)
	sender := &scriptedSender{errs: []error{errors.New("connection reset")}}

	summary, err := newTestWorker(repo, sender, now).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, summary.Delivered)

	assert.Equal(t, StatusScheduled, repo.get(first.ID).Status)
	assert.Equal(t, StatusDelivered, repo.get(second.ID).Status)
}

func TestRunDueLockContentionReturnsEmptySummary(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	seedDue(repo, now)
	sender := &scriptedSender{}
	worker := NewWorker(repo, SenderRegistry{ChannelWhatsapp: sender},
		passthroughLocker{err: redisclient.ErrLockNotAcquired}, &clock.Fixed{T: now}, nil, nil, time.Second)

	summary, err := worker.RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Empty(t, sender.calls)
}

func TestRunDueFindDueFailureSurfaces(t *testing.T) {
	repo := newMemRepo()
	repo.findDueErr = errors.New("db down")
	worker := newTestWorker(repo, &scriptedSender{}, time.Now())

	_, err := worker.RunDue(context.Background())
	assert.Error(t, err)
}

func TestRunDueMissingSenderFailsTerminally(t *testing.T) {
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	rem := seedDue(repo, now)
	worker := NewWorker(repo, SenderRegistry{}, passthroughLocker{}, &clock.Fixed{T: now}, nil, nil, time.Second)

	summary, err := worker.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, StatusFailed, repo.get(rem.ID).Status)
}

package reminder

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimed(attempt int, ch Channel) Reminder {
	return Reminder{
		ID:           uuid.New(),
		Channel:      ch,
		Status:       StatusSent,
		AttemptCount: attempt,
	}
}

func TestNextAttemptStateDelivered(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New())
	now := time.Now()

	tr := NextAttemptState(pref, claimed(1, ChannelWhatsapp), OutcomeDelivered, now)
	assert.Equal(t, StatusDelivered, tr.Status)
	assert.Equal(t, 1, tr.AttemptCount)
	assert.Nil(t, tr.NextScheduledAt)
	assert.Equal(t, ChannelWhatsapp, tr.NextChannel)
	assert.False(t, tr.Terminal)
}

func TestNextAttemptStateTransientReschedulesWithBackoff(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New()) // 3 retries, 30m backoff
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		attempt int
		backoff time.Duration
	}{
		{1, 30 * time.Minute},
		{2, 60 * time.Minute},
		{3, 120 * time.Minute},
	}
	for _, tt := range tests {
		tr := NextAttemptState(pref, claimed(tt.attempt, ChannelWhatsapp), OutcomeTransientFailure, now)
		assert.Equal(t, StatusScheduled, tr.Status)
		require.NotNil(t, tr.NextScheduledAt)
		assert.Equal(t, now.Add(tt.backoff), *tr.NextScheduledAt, "attempt %d", tt.attempt)
		assert.False(t, tr.Terminal)
	}
}

func TestNextAttemptStateTransientAdvancesChannelWithWrap(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New()) // whatsapp then sms
	now := time.Now()

	tr := NextAttemptState(pref, claimed(1, ChannelWhatsapp), OutcomeTransientFailure, now)
	assert.Equal(t, ChannelSms, tr.NextChannel)

	tr = NextAttemptState(pref, claimed(2, ChannelSms), OutcomeTransientFailure, now)
	assert.Equal(t, ChannelWhatsapp, tr.NextChannel, "priority list wraps around")
}

func TestNextAttemptStateExhaustsAfterMaxRetriesPlusOne(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New())
	pref.MaxRetries = 2 // 3 attempts total
	now := time.Now()

	for attempt := 1; attempt <= 2; attempt++ {
		tr := NextAttemptState(pref, claimed(attempt, ChannelWhatsapp), OutcomeTransientFailure, now)
		assert.Equal(t, StatusScheduled, tr.Status, "attempt %d still retries", attempt)
	}

	tr := NextAttemptState(pref, claimed(3, ChannelWhatsapp), OutcomeTransientFailure, now)
	assert.Equal(t, StatusFailed, tr.Status)
	assert.True(t, tr.Terminal)
	assert.Nil(t, tr.NextScheduledAt)
}

func TestNextAttemptStateZeroRetriesFailsOnFirstTransient(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New())
	pref.MaxRetries = 0

	tr := NextAttemptState(pref, claimed(1, ChannelWhatsapp), OutcomeTransientFailure, time.Now())
	assert.Equal(t, StatusFailed, tr.Status)
	assert.True(t, tr.Terminal)
}

func TestNextAttemptStateTerminalFailureBurnsAllAttempts(t *testing.T) {
	pref := DefaultPreference(uuid.New(), uuid.New())

	tr := NextAttemptState(pref, claimed(1, ChannelSms), OutcomeTerminalFailure, time.Now())
	assert.Equal(t, StatusFailed, tr.Status)
	assert.Equal(t, pref.MaxRetries+1, tr.AttemptCount)
	assert.True(t, tr.Terminal)
	assert.Nil(t, tr.NextScheduledAt)
}

func TestPreferenceNextChannel(t *testing.T) {
	p := Preference{ChannelPriority: []Channel{ChannelWhatsapp, ChannelSms}}
	assert.Equal(t, ChannelSms, p.NextChannel(ChannelWhatsapp))
	assert.Equal(t, ChannelWhatsapp, p.NextChannel(ChannelSms))
	assert.Equal(t, ChannelWhatsapp, p.NextChannel(Channel("carrier_pigeon")))

	empty := Preference{}
	assert.Equal(t, ChannelSms, empty.NextChannel(ChannelSms))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusDelivered.Terminal())
	assert.False(t, StatusFailed.Terminal())
	assert.False(t, StatusRebookRequested.Terminal())
}

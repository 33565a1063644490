package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/scheduling"
)

// memRepo is an in-memory Repository with the same conditional-update
// semantics as the postgres implementation.
type memRepo struct {
	mu sync.Mutex

	appointments map[uuid.UUID]*scheduling.Appointment
	preferences  map[uuid.UUID]*Preference // keyed by provider id
	reminders    map[uuid.UUID]*Reminder
	logs         []Log
	events       []AppointmentEvent

	findDueErr error
	claimErr   error
	markErr    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		appointments: make(map[uuid.UUID]*scheduling.Appointment),
		preferences:  make(map[uuid.UUID]*Preference),
		reminders:    make(map[uuid.UUID]*Reminder),
	}
}

func (m *memRepo) addReminder(r Reminder) Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := r
	m.reminders[r.ID] = &cp
	return r
}

func (m *memRepo) get(id uuid.UUID) Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reminders[id]
}

func (m *memRepo) GetAppointment(_ context.Context, _, appointmentID uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[appointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetPreference(_ context.Context, _, providerID uuid.UUID) (*Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.preferences[providerID]
	if !ok {
		return nil, ErrPreferenceNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetPreferenceForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (*Preference, error) {
	m.mu.Lock()
	a, ok := m.appointments[appointmentID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrPreferenceNotFound
	}
	return m.GetPreference(ctx, orgID, a.ProviderID)
}

func (m *memRepo) CreateReminders(_ context.Context, reminders []Reminder) ([]Reminder, error) {
	out := make([]Reminder, 0, len(reminders))
	for _, r := range reminders {
		r.Status = StatusScheduled
		out = append(out, m.addReminder(r))
	}
	return out, nil
}

func (m *memRepo) FindDue(_ context.Context, now time.Time) ([]Reminder, error) {
	if m.findDueErr != nil {
		return nil, m.findDueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []Reminder
	for _, r := range m.reminders {
		if r.Status == StatusScheduled && !r.ScheduledAt.After(now) {
			due = append(due, *r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	return due, nil
}

func (m *memRepo) ClaimForSend(_ context.Context, id uuid.UUID) (*Reminder, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.Status != StatusScheduled {
		return nil, ErrStatusConflict
	}
	r.Status = StatusSent
	r.AttemptCount++
	cp := *r
	return &cp, nil
}

func (m *memRepo) RecordAttemptResult(_ context.Context, id uuid.UUID, tr Transition, sentAt *time.Time) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.Status != StatusSent {
		return nil, ErrStatusConflict
	}
	r.Status = tr.Status
	r.AttemptCount = tr.AttemptCount
	r.Channel = tr.NextChannel
	if tr.NextScheduledAt != nil {
		r.ScheduledAt = *tr.NextScheduledAt
	}
	if sentAt != nil {
		r.SentAt = sentAt
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) FindLatestByAddress(_ context.Context, address string, since time.Time) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Reminder
	for _, r := range m.reminders {
		if r.Address != address || r.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrReminderNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memRepo) MarkConfirmed(_ context.Context, id uuid.UUID, at time.Time, inboundBody string) (*Reminder, error) {
	return m.mark(id, StatusConfirmed, &at, nil, inboundBody, nil)
}

func (m *memRepo) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time, inboundBody, reason string) (*Reminder, error) {
	return m.mark(id, StatusCancelled, nil, &at, inboundBody, &reason)
}

func (m *memRepo) MarkRebookRequested(_ context.Context, id uuid.UUID, inboundBody string) (*Reminder, error) {
	return m.mark(id, StatusRebookRequested, nil, nil, inboundBody, nil)
}

func (m *memRepo) mark(id uuid.UUID, to Status, confirmedAt, cancelledAt *time.Time, body string, reason *string) (*Reminder, error) {
	if m.markErr != nil {
		return nil, m.markErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	if r.Status.Terminal() {
		return nil, ErrStatusConflict
	}
	r.Status = to
	r.ConfirmedAt = confirmedAt
	r.CancelledAt = cancelledAt
	r.LastInboundMessage = &body
	r.CancelReason = reason
	cp := *r
	return &cp, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to scheduling.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return ErrStatusConflict
	}
	a.Status = to
	return nil
}

func (m *memRepo) InsertLog(_ context.Context, entry Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memRepo) InsertAppointmentEvent(_ context.Context, ev AppointmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

var _ Repository = (*memRepo)(nil)

// passthroughLocker runs the critical section without any locking.
type passthroughLocker struct{ err error }

func (l passthroughLocker) WithRunLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

// scriptedSender returns its queued errors in order, then succeeds.
type scriptedSender struct {
	errs  []error
	calls []OutboundMessage
}

func (s *scriptedSender) Send(_ context.Context, msg OutboundMessage) error {
	s.calls = append(s.calls, msg)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

package reminder

import "time"

// AttemptOutcome is the worker's classification of one send attempt.
type AttemptOutcome string

const (
	OutcomeDelivered        AttemptOutcome = "delivered"
	OutcomeTransientFailure AttemptOutcome = "transient_failure"
	OutcomeTerminalFailure  AttemptOutcome = "terminal_failure"
)

// Transition is the computed end state of one send attempt.
type Transition struct {
	Status          Status
	AttemptCount    int
	NextScheduledAt *time.Time // set when the reminder loops back to scheduled
	NextChannel     Channel
	Terminal        bool
}

// NextAttemptState is the pure retry/backoff state machine, independent of
// any transport. r must be the claimed row, i.e. AttemptCount already counts
// the attempt being resolved. A transient failure reschedules with
// exponential backoff (base * 2^(attempt-1)) and advances to the next
// channel in the priority list until max_retries+1 attempts are spent; a
// terminal provider failure burns all remaining attempts at once.
func NextAttemptState(pref Preference, r Reminder, outcome AttemptOutcome, now time.Time) Transition {
	maxAttempts := pref.MaxRetries + 1

	switch outcome {
	case OutcomeDelivered:
		return Transition{
			Status:       StatusDelivered,
			AttemptCount: r.AttemptCount,
			NextChannel:  r.Channel,
		}

	case OutcomeTerminalFailure:
		return Transition{
			Status:       StatusFailed,
			AttemptCount: maxAttempts,
			NextChannel:  r.Channel,
			Terminal:     true,
		}

	default: // transient
		if r.AttemptCount >= maxAttempts {
			return Transition{
				Status:       StatusFailed,
				AttemptCount: r.AttemptCount,
				NextChannel:  r.Channel,
				Terminal:     true,
			}
		}
		backoff := time.Duration(pref.RetryBackoffMinutes) * time.Minute
		for i := 1; i < r.AttemptCount; i++ {
			backoff *= 2
		}
		next := now.Add(backoff)
		return Transition{
			Status:          StatusScheduled,
			AttemptCount:    r.AttemptCount,
			NextScheduledAt: &next,
			NextChannel:     pref.NextChannel(r.Channel),
		}
	}
}

package clock

import "time"

// Clock supplies the current time. Business logic never reads the wall clock
// directly so lead-time and backoff behaviour stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

// Fixed is a Clock pinned to a single instant. Tests may reassign T between
// calls; Fixed is not safe for concurrent mutation.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns midnight of the current calendar day in loc, expressed as a UTC date.
// Due dates are stored as UTC dates, so comparisons happen on that scale.
func Today(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(c.Now().In(loc))
}

// DateOf truncates t to its calendar date and reinterprets it in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodayUsesLocationCalendarDay(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 2024-04-03 17:30 UTC is already 2024-04-04 in Manila.
	c := NewFakeClock(time.Date(2024, 4, 3, 17, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC), Today(c, manila))
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), Today(c, nil))
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(36 * time.Hour)

	assert.Equal(t, start.Add(36*time.Hour), c.Now())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), DateOf(c.Now()))
}

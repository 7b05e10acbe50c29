package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	late := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysBetween(late, late.Add(-23*time.Hour)))
	assert.Equal(t, 1, DaysBetween(late, late.Add(2*time.Minute)))
	assert.Equal(t, 2, DaysBetween(late, late.Add(25*time.Hour)))
	assert.Equal(t, -1, DaysBetween(late, late.Add(-24*time.Hour)))

	// offsets are normalized: 01:00 in UTC+5 is still the previous UTC day
	almaty := time.FixedZone("UTC+5", 5*60*60)
	assert.Equal(t, 0, DaysBetween(late, time.Date(2026, 3, 2, 1, 0, 0, 0, almaty)))
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	assert.Equal(t, start, c.Now())
	c.Advance(36 * time.Hour)
	assert.Equal(t, 2, DaysBetween(start, c.Now()))

	var _ Clock = SystemClock{}
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

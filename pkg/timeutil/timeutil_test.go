package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_UsesLocation(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	// 21:30 UTC is already the next day in Almaty.
	ts := time.Date(2026, 10, 17, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-10-17", DayKey(ts, time.UTC))
	assert.Equal(t, "2026-10-18", DayKey(ts, almaty))
}

func TestParseDayKey_RoundTrip(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, loc)

	parsed, err := ParseDayKey(DayKey(ts, loc), loc)
	require.NoError(t, err)
	assert.Equal(t, StartOfDay(ts, loc), parsed)
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b, time.UTC))
	assert.False(t, SameDay(b, c, time.UTC))
}

func TestLoadLocation_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
}

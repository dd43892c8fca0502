package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNightsHalfOpen(t *testing.T) {
	checkIn := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	checkOut := time.Date(2026, 3, 13, 11, 0, 0, 0, time.UTC)

	nights := Nights(checkIn, checkOut)
	require.Len(t, nights, 3)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), nights[0])
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), nights[2])

	// check-out day itself is not a night
	for _, n := range nights {
		assert.True(t, n.Before(Midnight(checkOut)))
	}
}

func TestNightsEmptyRange(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, Nights(day, day))
	assert.Empty(t, Nights(day.AddDate(0, 0, 1), day))
	assert.Equal(t, 0, NightCount(day, day))
}

func TestDayKeyRoundTrip(t *testing.T) {
	day := time.Date(2026, 12, 5, 23, 59, 0, 0, time.UTC)
	key := DayKey(day)
	assert.Equal(t, "20261205", key)

	parsed, err := ParseDayKey(key)
	require.NoError(t, err)
	assert.Equal(t, Midnight(day), parsed)
}

func TestMidnightNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	local := time.Date(2026, 6, 1, 2, 0, 0, 0, loc) // 2026-05-31 17:00 UTC
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), Midnight(local))
}

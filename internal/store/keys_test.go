package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleDayMemberRoundTrip(t *testing.T) {
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	member := ScheduleDayMember("unit-17", day)
	assert.Equal(t, "unit-17|20260402", member)

	unitID, dayKey, ok := SplitScheduleDayMember(member)
	require.True(t, ok)
	assert.Equal(t, "unit-17", unitID)
	assert.Equal(t, "20260402", dayKey)
}

func TestSplitScheduleDayMemberMalformed(t *testing.T) {
	_, _, ok := SplitScheduleDayMember("no-separator")
	assert.False(t, ok)
}

func TestUnitIDFromKey(t *testing.T) {
	assert.Equal(t, "u1", UnitIDFromKey("unit:u1"))
	assert.Equal(t, "", UnitIDFromKey("schedule:u1:20260402"))
	assert.Equal(t, "", UnitIDFromKey("idx:units:all"))
}

func TestUnitsByCityKeyNormalizes(t *testing.T) {
	assert.Equal(t, UnitsByCityKey("lisbon"), UnitsByCityKey("  Lisbon "))
}

func TestDayScoreOrdering(t *testing.T) {
	d1 := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	assert.Less(t, DayScore(d1), DayScore(d2))

	// intra-day times collapse to the same score
	assert.Equal(t, DayScore(d1), DayScore(d1.Add(13*time.Hour)))
}

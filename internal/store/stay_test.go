package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staysearch/unit-index/internal/domain"
)

func TestAggregateStay(t *testing.T) {
	docs := []domain.DayScheduleDocument{
		{UnitID: "u1", Status: domain.StatusAvailable, Price: 100},
		{UnitID: "u1", Status: domain.StatusAvailable, Price: 120},
		{UnitID: "u2", Status: domain.StatusBlocked, Price: 80},
		{UnitID: "u3", Status: domain.StatusBooked, BookingID: "b1", BookingState: domain.BookingPending, Price: 90},
	}

	agg := AggregateStay(docs)
	require.Len(t, agg, 3)

	assert.Equal(t, UnitStay{Blocked: false, PricedNights: 2, PriceSum: 220}, agg["u1"])
	assert.True(t, agg["u2"].Blocked)
	// pending booking prices the night but does not block it
	assert.Equal(t, UnitStay{Blocked: false, PricedNights: 1, PriceSum: 90}, agg["u3"])
}

func seedSchedule(t *testing.T, m *Memory, doc domain.DayScheduleDocument) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	b := NewBatch()
	b.Set[ScheduleKey(doc.UnitID, doc.Day)] = string(raw)
	b.ZAdd[ScheduleDaysKey] = append(b.ZAdd[ScheduleDaysKey], Member{
		ID:    ScheduleDayMember(doc.UnitID, doc.Day),
		Score: DayScore(doc.Day),
	})
	require.NoError(t, m.Commit(context.Background(), b))
}

func TestMemoryStayQuery(t *testing.T) {
	m := NewMemory()
	day1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	seedSchedule(t, m, domain.DayScheduleDocument{UnitID: "u1", Day: day1, Status: domain.StatusAvailable, Price: 100})
	seedSchedule(t, m, domain.DayScheduleDocument{UnitID: "u1", Day: day2, Status: domain.StatusAvailable, Price: 120})
	seedSchedule(t, m, domain.DayScheduleDocument{UnitID: "u2", Day: day1, Status: domain.StatusBlocked, Price: 100})
	// outside the queried range
	seedSchedule(t, m, domain.DayScheduleDocument{UnitID: "u1", Day: day3, Status: domain.StatusBlocked, Price: 999})

	agg, err := m.StayQuery(context.Background(), day1, day3)
	require.NoError(t, err)
	require.Len(t, agg, 2)

	assert.Equal(t, UnitStay{Blocked: false, PricedNights: 2, PriceSum: 220}, agg["u1"])
	assert.True(t, agg["u2"].Blocked)
}

func TestMemoryStayQueryPropagatesFailure(t *testing.T) {
	m := NewMemory()
	boom := errors.New("store down")
	m.FailWith(boom)

	_, err := m.StayQuery(context.Background(), time.Now(), time.Now().AddDate(0, 0, 2))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

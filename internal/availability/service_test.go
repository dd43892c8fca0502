package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/repository"
)

// scheduleRepo is an in-memory SourceRepository limited to what the
// availability workflow touches.
type scheduleRepo struct {
	mu     sync.Mutex
	active map[string]bool
	rows   map[string]repository.DayScheduleRow // unitID|yyyymmdd
}

func newScheduleRepo(activeUnits ...string) *scheduleRepo {
	r := &scheduleRepo{
		active: make(map[string]bool),
		rows:   make(map[string]repository.DayScheduleRow),
	}
	for _, id := range activeUnits {
		r.active[id] = true
	}
	return r
}

func rowKey(unitID string, day time.Time) string {
	return unitID + "|" + domain.DayKey(day)
}

func (r *scheduleRepo) UnitActive(_ context.Context, unitID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[unitID], nil
}

func (r *scheduleRepo) DaySchedules(_ context.Context, unitID string, from, to time.Time) ([]repository.DayScheduleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.DayScheduleRow
	for _, row := range r.rows {
		if row.UnitID != unitID {
			continue
		}
		day := domain.Midnight(row.Day)
		if !day.Before(from) && day.Before(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *scheduleRepo) DaySchedulesByBooking(_ context.Context, bookingID string) ([]repository.DayScheduleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.DayScheduleRow
	for _, row := range r.rows {
		if row.BookingID == bookingID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *scheduleRepo) UpsertDaySchedules(_ context.Context, rows []repository.DayScheduleRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.rows[rowKey(row.UnitID, row.Day)] = row
	}
	return nil
}

func (r *scheduleRepo) DeleteDaySchedules(_ context.Context, unitID string, from, to time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, row := range r.rows {
		if row.UnitID != unitID {
			continue
		}
		day := domain.Midnight(row.Day)
		if !day.Before(from) && day.Before(to) {
			delete(r.rows, key)
		}
	}
	return nil
}

func (r *scheduleRepo) LoadUnitBundle(context.Context, string) (*repository.UnitBundle, error) {
	return nil, domain.ErrNotFound
}

func (r *scheduleRepo) ActiveUnitIDsByProperty(context.Context, string) ([]string, error) {
	return nil, nil
}

func (r *scheduleRepo) ActiveUnitIDsByUnitType(context.Context, string) ([]string, error) {
	return nil, nil
}

func (r *scheduleRepo) ActiveUnitIDs(context.Context, int, int) ([]string, error) {
	return nil, nil
}

func (r *scheduleRepo) CountActiveUnits(context.Context) (int64, error) {
	return 0, nil
}

var _ repository.SourceRepository = (*scheduleRepo)(nil)

// recordingReindexer records which units were refreshed.
type recordingReindexer struct {
	mu    sync.Mutex
	units []string
}

func (r *recordingReindexer) ReindexUnit(_ context.Context, unitID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, unitID)
	return true, nil
}

func (r *recordingReindexer) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.units...)
}

func stay(nights int) (time.Time, time.Time) {
	checkIn := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	return checkIn, checkIn.AddDate(0, 0, nights)
}

func TestCheckAvailabilityNoRowsMeansAvailable(t *testing.T) {
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(3)
	ok, err := svc.CheckAvailability(context.Background(), "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckAvailabilityUnknownUnit(t *testing.T) {
	svc := NewService(newScheduleRepo(), nil)

	checkIn, checkOut := stay(2)
	ok, err := svc.CheckAvailability(context.Background(), "ghost", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAvailabilityMaintenanceDayRefusesStay(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(3)
	require.NoError(t, repo.UpsertDaySchedules(ctx, []repository.DayScheduleRow{{
		UnitID: "u1", Day: checkIn.AddDate(0, 0, 1),
		Status: string(domain.StatusMaintenance), Reason: "boiler service",
	}}))

	ok, err := svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.False(t, ok, "maintenance day inside the stay must refuse the booking")
}

func TestCheckAvailabilityPendingHoldRefusesStay(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(2)
	require.NoError(t, repo.UpsertDaySchedules(ctx, []repository.DayScheduleRow{{
		UnitID: "u1", Day: checkIn,
		Status:    string(domain.StatusBooked),
		BookingID: "b9", BookingState: string(domain.BookingPending),
	}}))

	// pending holds keep the unit searchable but a second booking must
	// not land on the held night
	ok, err := svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// the holder itself may still re-validate its stay
	ok, err = svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "b9")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckAvailabilityOwnerUseDayRefusesStay(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(2)
	require.NoError(t, repo.UpsertDaySchedules(ctx, []repository.DayScheduleRow{{
		UnitID: "u1", Day: checkIn, Status: string(domain.StatusOwnerUse),
	}}))

	ok, err := svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAvailabilityInvalidRange(t *testing.T) {
	svc := NewService(newScheduleRepo("u1"), nil)

	checkIn, _ := stay(2)
	_, err := svc.CheckAvailability(context.Background(), "u1", checkIn, checkIn, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBlockAndReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	idx := &recordingReindexer{}
	svc := NewService(repo, idx)

	checkIn, checkOut := stay(3)
	require.NoError(t, svc.BlockForBooking(ctx, "u1", "b1", domain.BookingConfirmed, checkIn, checkOut))

	ok, err := svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// the booking itself still sees the unit as open
	ok, err = svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.ReleaseBooking(ctx, "b1"))

	ok, err = svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.True(t, ok)

	// every write refreshed the index
	assert.Equal(t, []string{"u1", "u1"}, idx.calls())
}

func TestBlockForBookingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(2)
	require.NoError(t, svc.BlockForBooking(ctx, "u1", "b1", domain.BookingConfirmed, checkIn, checkOut))
	require.NoError(t, svc.BlockForBooking(ctx, "u1", "b1", domain.BookingConfirmed, checkIn, checkOut))

	rows, err := repo.DaySchedulesByBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUpdateBookingStateTogglesBlocking(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	checkIn, checkOut := stay(2)
	require.NoError(t, svc.BlockForBooking(ctx, "u1", "b1", domain.BookingConfirmed, checkIn, checkOut))
	require.NoError(t, svc.UpdateBookingState(ctx, "b1", domain.BookingCancelled))

	// cancelled bookings no longer occupy the unit
	ok, err := svc.CheckAvailability(ctx, "u1", checkIn, checkOut, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateBookingStateUnknownBooking(t *testing.T) {
	svc := NewService(newScheduleRepo("u1"), nil)
	err := svc.UpdateBookingState(context.Background(), "ghost", domain.BookingCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReleaseUnknownBooking(t *testing.T) {
	svc := NewService(newScheduleRepo("u1"), nil)
	err := svc.ReleaseBooking(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetMonthlyCalendarFillsMissingDays(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	blocked := time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertDaySchedules(ctx, []repository.DayScheduleRow{{
		UnitID: "u1", Day: blocked, Status: string(domain.StatusBlocked), Reason: "renovation",
	}}))

	days, err := svc.GetMonthlyCalendar(ctx, "u1", 2026, time.November)
	require.NoError(t, err)
	require.Len(t, days, 30)

	assert.Equal(t, domain.StatusBlocked, days[9].Status)
	assert.Equal(t, "renovation", days[9].Reason)
	assert.Equal(t, domain.StatusAvailable, days[0].Status)
	assert.Equal(t, domain.StatusAvailable, days[29].Status)
}

func TestGetMonthlyCalendarUnknownUnit(t *testing.T) {
	svc := NewService(newScheduleRepo(), nil)
	_, err := svc.GetMonthlyCalendar(context.Background(), "ghost", 2026, time.May)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyBulkAvailabilityOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	svc := NewService(repo, nil)

	from := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 5)

	seed := []BulkDay{
		{Day: from, Status: domain.StatusBlocked},
		{Day: from.AddDate(0, 0, 1), Status: domain.StatusBlocked},
	}
	require.NoError(t, svc.ApplyBulkAvailability(ctx, "u1", []BulkPeriod{
		{From: from, To: to, Days: seed},
	}))

	// overwrite with a single priced day; the old blocks must vanish
	update := []BulkDay{{Day: from.AddDate(0, 0, 2), Status: domain.StatusAvailable, Price: 150, Currency: "EUR"}}
	require.NoError(t, svc.ApplyBulkAvailability(ctx, "u1", []BulkPeriod{
		{From: from, To: to, Days: update, Overwrite: true},
	}))

	rows, err := repo.DaySchedules(ctx, "u1", from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 150.0, rows[0].Price)

	ok, err := svc.CheckAvailability(ctx, "u1", from, to, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyBulkAvailabilityDisjointPeriods(t *testing.T) {
	ctx := context.Background()
	repo := newScheduleRepo("u1")
	idx := &recordingReindexer{}
	svc := NewService(repo, idx)

	week1 := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	week3 := week1.AddDate(0, 0, 14)

	// stale block in the first week, to be swept by its period's overwrite
	require.NoError(t, repo.UpsertDaySchedules(ctx, []repository.DayScheduleRow{{
		UnitID: "u1", Day: week1.AddDate(0, 0, 3), Status: string(domain.StatusBlocked),
	}}))

	err := svc.ApplyBulkAvailability(ctx, "u1", []BulkPeriod{
		{
			From: week1, To: week1.AddDate(0, 0, 7), Overwrite: true,
			Days: []BulkDay{{Day: week1, Status: domain.StatusAvailable, Price: 120, Currency: "EUR"}},
		},
		{
			From: week3, To: week3.AddDate(0, 0, 7),
			Days: []BulkDay{{Day: week3, Status: domain.StatusBlocked, Reason: "renovation", Notes: "new kitchen"}},
		},
	})
	require.NoError(t, err)

	rows, err := repo.DaySchedules(ctx, "u1", week1, week3.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// one index refresh for the whole write, not one per period
	assert.Equal(t, []string{"u1"}, idx.calls())

	blocked, err := repo.DaySchedules(ctx, "u1", week3, week3.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "renovation", blocked[0].Reason)
	assert.Equal(t, "new kitchen", blocked[0].Notes)
}

func TestApplyBulkAvailabilityRejectsDayOutsidePeriod(t *testing.T) {
	svc := NewService(newScheduleRepo("u1"), nil)

	from := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)
	periods := []BulkPeriod{{
		From: from, To: to,
		Days: []BulkDay{{Day: to, Status: domain.StatusBlocked}},
	}}

	err := svc.ApplyBulkAvailability(context.Background(), "u1", periods)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestApplyBulkAvailabilityRejectsEmptyPeriods(t *testing.T) {
	svc := NewService(newScheduleRepo("u1"), nil)
	err := svc.ApplyBulkAvailability(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

package indexer

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/repository"
	"github.com/staysearch/unit-index/internal/store"
)

// fakeRepo is an in-memory SourceRepository seeded per test.
type fakeRepo struct {
	mu      sync.Mutex
	bundles map[string]*repository.UnitBundle
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bundles: make(map[string]*repository.UnitBundle)}
}

func (r *fakeRepo) put(b *repository.UnitBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[b.Unit.ID] = b
}

func (r *fakeRepo) remove(unitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bundles, unitID)
}

func (r *fakeRepo) LoadUnitBundle(_ context.Context, unitID string) (*repository.UnitBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[unitID]
	if !ok || !b.Unit.Active {
		return nil, domain.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *fakeRepo) UnitActive(_ context.Context, unitID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[unitID]
	return ok && b.Unit.Active, nil
}

func (r *fakeRepo) ActiveUnitIDsByProperty(_ context.Context, propertyID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, b := range r.bundles {
		if b.Unit.Active && b.Unit.PropertyID == propertyID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeRepo) ActiveUnitIDsByUnitType(_ context.Context, unitTypeID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, b := range r.bundles {
		if b.Unit.Active && b.Unit.UnitTypeID == unitTypeID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeRepo) ActiveUnitIDs(_ context.Context, offset, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, b := range r.bundles {
		if b.Unit.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end], nil
}

func (r *fakeRepo) CountActiveUnits(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bundles {
		if b.Unit.Active {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) DaySchedules(context.Context, string, time.Time, time.Time) ([]repository.DayScheduleRow, error) {
	return nil, nil
}

func (r *fakeRepo) DaySchedulesByBooking(context.Context, string) ([]repository.DayScheduleRow, error) {
	return nil, nil
}

func (r *fakeRepo) UpsertDaySchedules(context.Context, []repository.DayScheduleRow) error {
	return nil
}

func (r *fakeRepo) DeleteDaySchedules(context.Context, string, time.Time, time.Time) error {
	return nil
}

var _ repository.SourceRepository = (*fakeRepo)(nil)

func bundle(unitID, propertyID string, days ...time.Time) *repository.UnitBundle {
	b := &repository.UnitBundle{
		Unit: repository.UnitRow{
			ID:         unitID,
			PropertyID: propertyID,
			UnitTypeID: "t1",
			Name:       "Unit " + unitID,
			BasePrice:  100,
			Currency:   "EUR",
			Capacity:   2,
			Active:     true,
		},
		Property: repository.PropertyRow{ID: propertyID, Name: "Property", City: "lisbon", Active: true},
		UnitType: repository.UnitTypeRow{ID: "t1", Name: "Studio"},
	}
	for _, day := range days {
		b.Days = append(b.Days, repository.DayScheduleRow{
			UnitID: unitID,
			Day:    day,
			Status: string(domain.StatusAvailable),
			Price:  110,
		})
	}
	return b
}

func newTestService(m *store.Memory, repo repository.SourceRepository) *Service {
	return NewService(m, repo, Config{})
}

func mustScheduleCount(t *testing.T, m *store.Memory) int64 {
	t.Helper()
	n, err := m.ZCard(context.Background(), store.ScheduleDaysKey)
	require.NoError(t, err)
	return n
}

func TestIndexUnitCommitsDocumentsAndIndexes(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.put(bundle("u1", "p1", day, day.AddDate(0, 0, 1)))

	svc := newTestService(m, repo)
	indexed, err := svc.IndexUnit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, indexed)

	_, err = m.Get(ctx, store.UnitKey("u1"))
	require.NoError(t, err)

	members, err := m.SMembers(ctx, store.UnitsAllKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)

	byCity, err := m.SMembers(ctx, store.UnitsByCityKey("lisbon"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, byCity)

	assert.EqualValues(t, 2, mustScheduleCount(t, m))
}

func TestIndexUnitMissingOrInactiveIsSoftFalse(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	inactive := bundle("u1", "p1")
	inactive.Unit.Active = false
	repo.put(inactive)

	svc := newTestService(m, repo)

	indexed, err := svc.IndexUnit(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, indexed)

	indexed, err = svc.IndexUnit(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, indexed)

	_, err = m.Get(ctx, store.UnitKey("u1"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestIndexUnitRejectsEmptyID(t *testing.T) {
	svc := newTestService(store.NewMemory(), newFakeRepo())
	_, err := svc.IndexUnit(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReindexUnitShrinkingRangeLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.put(bundle("u1", "p1", day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)))

	svc := newTestService(m, repo)
	_, err := svc.IndexUnit(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, mustScheduleCount(t, m))

	// the schedule shrinks to a single day at the source
	repo.put(bundle("u1", "p1", day))

	indexed, err := svc.ReindexUnit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, indexed)

	assert.EqualValues(t, 1, mustScheduleCount(t, m))
	_, err = m.Get(ctx, store.ScheduleKey("u1", day.AddDate(0, 0, 2)))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	_, err = m.Get(ctx, store.ScheduleKey("u1", day))
	assert.NoError(t, err)
}

func TestDeleteUnitRemovesEverything(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.put(bundle("u1", "p1", day))

	svc := newTestService(m, repo)
	_, err := svc.IndexUnit(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUnit(ctx, "u1", ""))

	_, err = m.Get(ctx, store.UnitKey("u1"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	members, err := m.SMembers(ctx, store.UnitsAllKey)
	require.NoError(t, err)
	assert.Empty(t, members)

	byProperty, err := m.SMembers(ctx, store.UnitsByPropertyKey("p1"))
	require.NoError(t, err)
	assert.Empty(t, byProperty)

	assert.EqualValues(t, 0, mustScheduleCount(t, m))
}

func TestCascadePropertyDeletedEnumeratesFromIndex(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	repo.put(bundle("u1", "p1"))
	repo.put(bundle("u2", "p1"))
	repo.put(bundle("u3", "p2"))

	svc := newTestService(m, repo)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err := svc.IndexUnit(ctx, id)
		require.NoError(t, err)
	}

	// rows are already gone at the source, the index still knows them
	repo.remove("u1")
	repo.remove("u2")

	processed, err := svc.CascadeProperty(ctx, "p1", CascadeDeleted)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	members, err := m.SMembers(ctx, store.UnitsAllKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, members)
}

func TestCascadePropertyUpdatedReindexesUnits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	repo.put(bundle("u1", "p1"))
	repo.put(bundle("u2", "p1"))

	svc := newTestService(m, repo)
	processed, err := svc.CascadeProperty(ctx, "p1", CascadeUpdated)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	members, err := m.SMembers(ctx, store.UnitsByPropertyKey("p1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, members)
}

func TestCascadeUnitTypeFieldChange(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	b := bundle("u1", "p1")
	b.Fields = []repository.FieldValueRow{{UnitID: "u1", Name: "view", Kind: string(domain.FieldKindString), StrValue: "sea"}}
	repo.put(b)

	svc := newTestService(m, repo)
	processed, err := svc.CascadeUnitTypeFieldChange(ctx, "t1", FieldChange{Field: "view", Op: "renamed", NewName: "outlook"})
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	_, err = m.Get(ctx, store.UnitKey("u1"))
	assert.NoError(t, err)
}

func TestRebuildAllPagesThroughSource(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		repo.put(bundle(id, "p1"))
	}

	// a stale key from a previous generation must not survive the rebuild
	stale := store.NewBatch()
	stale.Set[store.UnitKey("stale")] = "{}"
	stale.SAdd[store.UnitsAllKey] = []string{"stale"}
	require.NoError(t, m.Commit(ctx, stale))

	svc := newTestService(m, repo)
	indexed, err := svc.RebuildAll(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, indexed)

	members, err := m.SMembers(ctx, store.UnitsAllKey)
	require.NoError(t, err)
	assert.Len(t, members, 12)
	assert.NotContains(t, members, "stale")

	stats, err := svc.GetIndexStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexActive, stats.Units.Status)
	assert.EqualValues(t, 12, stats.Units.RecordCount)
	assert.EqualValues(t, 12, stats.SourceUnits)
}

func TestRebuildAllHonorsCancellation(t *testing.T) {
	m := store.NewMemory()
	repo := newFakeRepo()
	repo.put(bundle("u1", "p1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(m, repo)
	_, err := svc.RebuildAll(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanupOrphansRemovesDeadUnits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.put(bundle("u1", "p1", day))
	repo.put(bundle("u2", "p1"))

	svc := newTestService(m, repo)
	for _, id := range []string{"u1", "u2"} {
		_, err := svc.IndexUnit(ctx, id)
		require.NoError(t, err)
	}

	// u1 disappears from the source but its documents linger
	repo.remove("u1")

	removed, err := svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = m.Get(ctx, store.UnitKey("u1"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	_, err = m.Get(ctx, store.UnitKey("u2"))
	assert.NoError(t, err)
	assert.EqualValues(t, 0, mustScheduleCount(t, m))
}

func TestGetIndexStatisticsCountsLiveRecords(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	repo := newFakeRepo()

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.put(bundle("u1", "p1", day, day.AddDate(0, 0, 1)))

	svc := newTestService(m, repo)
	_, err := svc.IndexUnit(ctx, "u1")
	require.NoError(t, err)

	stats, err := svc.GetIndexStatistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Units.RecordCount)
	assert.EqualValues(t, 2, stats.Schedule.RecordCount)
	assert.EqualValues(t, 1, stats.SourceUnits)
}

package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/repository"
	"github.com/staysearch/unit-index/internal/store"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

const maxDayScore = float64(1 << 62)

// CascadeOp selects the per-unit operation applied by a property cascade.
type CascadeOp string

const (
	CascadeCreated CascadeOp = "created"
	CascadeUpdated CascadeOp = "updated"
	CascadeDeleted CascadeOp = "deleted"
)

// FieldChange describes a dynamic-field mutation on a unit type.
type FieldChange struct {
	Field   string `json:"field"`
	Op      string `json:"op"` // renamed, removed
	NewName string `json:"new_name,omitempty"`
}

// Statistics reports the state of both logical indexes.
type Statistics struct {
	Units    domain.IndexMetadata `json:"units"`
	Schedule domain.IndexMetadata `json:"schedule"`

	// SourceUnits is the active unit count in the relational source.
	// A gap against Units.RecordCount means the index has drifted.
	SourceUnits int64 `json:"source_units"`
}

// Config tunes the indexing service.
type Config struct {
	// BuildConcurrency caps concurrent document builds; BuildGateTimeout
	// bounds the wait for a slot (soft failure on expiry).
	BuildConcurrency int64         `mapstructure:"build_concurrency"`
	BuildGateTimeout time.Duration `mapstructure:"build_gate_timeout"`

	// CascadeConcurrency caps per-unit fan-out inside batch operations,
	// independently of the build gate.
	CascadeConcurrency int64 `mapstructure:"cascade_concurrency"`

	RebuildBatchSize int           `mapstructure:"rebuild_batch_size"`
	RebuildPause     time.Duration `mapstructure:"rebuild_pause"`
	LockShards       int           `mapstructure:"lock_shards"`
}

func (c Config) withDefaults() Config {
	if c.BuildConcurrency <= 0 {
		c.BuildConcurrency = 8
	}
	if c.BuildGateTimeout <= 0 {
		c.BuildGateTimeout = 5 * time.Second
	}
	if c.CascadeConcurrency <= 0 {
		c.CascadeConcurrency = 4
	}
	if c.RebuildBatchSize <= 0 {
		c.RebuildBatchSize = 100
	}
	if c.RebuildPause < 0 {
		c.RebuildPause = 0
	}
	if c.LockShards <= 0 {
		c.LockShards = 64
	}
	return c
}

// Service owns the unit and day-schedule index documents. It is the sole
// writer of the index store.
type Service struct {
	store store.IndexStore
	repo  repository.SourceRepository
	cfg   Config

	buildGate *Gate
	fanout    *semaphore.Weighted
	locks     *lockPool
}

// NewService creates the indexing service.
func NewService(st store.IndexStore, repo repository.SourceRepository, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:     st,
		repo:      repo,
		cfg:       cfg,
		buildGate: NewGate(cfg.BuildConcurrency, cfg.BuildGateTimeout),
		fanout:    semaphore.NewWeighted(cfg.CascadeConcurrency),
		locks:     newLockPool(cfg.LockShards),
	}
}

// IndexUnit builds and commits every document for a unit as one atomic
// write. It returns false without error when the unit does not exist or is
// inactive, and when the build gate cannot be acquired in time. Store I/O
// failures propagate.
func (s *Service) IndexUnit(ctx context.Context, unitID string) (bool, error) {
	if unitID == "" {
		return false, fmt.Errorf("%w: empty unit id", domain.ErrInvalidArgument)
	}

	if err := s.buildGate.Acquire(ctx); err != nil {
		pkglog.Ctx(ctx).Warn().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("build gate busy, skipping index")
		return false, nil
	}
	defer s.buildGate.Release()

	unlock := s.locks.lock(unitID)
	defer unlock()

	return s.buildAndCommit(ctx, unitID)
}

// ReindexUnit deletes every document of the unit and rebuilds from source.
// The removal completes before the rebuild starts so a shrinking date
// range cannot leave orphaned schedule documents behind.
func (s *Service) ReindexUnit(ctx context.Context, unitID string) (bool, error) {
	if unitID == "" {
		return false, fmt.Errorf("%w: empty unit id", domain.ErrInvalidArgument)
	}

	if err := s.buildGate.Acquire(ctx); err != nil {
		pkglog.Ctx(ctx).Warn().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("build gate busy, skipping reindex")
		return false, nil
	}
	defer s.buildGate.Release()

	unlock := s.locks.lock(unitID)
	defer unlock()

	if err := s.removeUnit(ctx, unitID, ""); err != nil {
		return false, err
	}
	return s.buildAndCommit(ctx, unitID)
}

// DeleteUnit removes the unit document and every day-schedule document of
// the unit from the index.
func (s *Service) DeleteUnit(ctx context.Context, unitID, propertyID string) error {
	if unitID == "" {
		return fmt.Errorf("%w: empty unit id", domain.ErrInvalidArgument)
	}

	unlock := s.locks.lock(unitID)
	defer unlock()

	if err := s.removeUnit(ctx, unitID, propertyID); err != nil {
		return err
	}
	s.touchMetadata(ctx)
	return nil
}

func (s *Service) buildAndCommit(ctx context.Context, unitID string) (bool, error) {
	bundle, err := s.repo.LoadUnitBundle(ctx, unitID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	doc, days := buildDocuments(bundle, time.Now().UTC())
	batch, err := buildCommitBatch(doc, days)
	if err != nil {
		return false, err
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return false, fmt.Errorf("commit unit %s: %w", unitID, err)
	}

	s.touchMetadata(ctx)
	return true, nil
}

// removeUnit deletes the unit's documents and index entries in one atomic
// batch. Missing units are a no-op.
func (s *Service) removeUnit(ctx context.Context, unitID, propertyID string) error {
	city, unitTypeID := "", ""

	raw, err := s.store.Get(ctx, store.UnitKey(unitID))
	switch {
	case err == nil:
		var doc domain.UnitDocument
		if jsonErr := json.Unmarshal([]byte(raw), &doc); jsonErr == nil {
			city, unitTypeID = doc.City, doc.UnitTypeID
			if propertyID == "" {
				propertyID = doc.PropertyID
			}
		}
	case errors.Is(err, store.ErrKeyNotFound):
		// Nothing indexed for this unit; still sweep stray schedule keys.
	default:
		return err
	}

	dayKeys, err := s.store.ZRangeByScore(ctx, store.ScheduleByUnitKey(unitID), 0, maxDayScore)
	if err != nil {
		return err
	}

	batch := deleteBatch(unitID, propertyID, city, unitTypeID, dayKeys)
	if err := s.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("delete unit %s: %w", unitID, err)
	}
	return nil
}

// CascadeProperty applies the per-unit operation matching op to every unit
// of the property, in parallel under the fan-out ceiling. Per-unit
// failures are logged and skipped; the count of successfully processed
// units is returned.
func (s *Service) CascadeProperty(ctx context.Context, propertyID string, op CascadeOp) (int, error) {
	if propertyID == "" {
		return 0, fmt.Errorf("%w: empty property id", domain.ErrInvalidArgument)
	}

	var (
		unitIDs []string
		err     error
	)
	if op == CascadeDeleted {
		// The source may already have dropped the rows; enumerate from
		// the index instead.
		unitIDs, err = s.store.SMembers(ctx, store.UnitsByPropertyKey(propertyID))
	} else {
		unitIDs, err = s.repo.ActiveUnitIDsByProperty(ctx, propertyID)
	}
	if err != nil {
		return 0, fmt.Errorf("cascade property %s: %w", propertyID, err)
	}

	processed := s.fanOut(ctx, unitIDs, func(ctx context.Context, unitID string) error {
		switch op {
		case CascadeCreated:
			_, err := s.IndexUnit(ctx, unitID)
			return err
		case CascadeDeleted:
			return s.DeleteUnit(ctx, unitID, propertyID)
		default:
			_, err := s.ReindexUnit(ctx, unitID)
			return err
		}
	})

	pkglog.Ctx(ctx).Info().
		Str(pkglog.FieldPropertyID, propertyID).
		Str("op", string(op)).
		Int("processed", processed).
		Int("attempted", len(unitIDs)).
		Msg("property cascade complete")

	return processed, nil
}

// CascadeUnitTypeFieldChange reindexes every unit of the type after a
// dynamic field was renamed or removed.
func (s *Service) CascadeUnitTypeFieldChange(ctx context.Context, unitTypeID string, change FieldChange) (int, error) {
	if unitTypeID == "" {
		return 0, fmt.Errorf("%w: empty unit type id", domain.ErrInvalidArgument)
	}

	unitIDs, err := s.repo.ActiveUnitIDsByUnitType(ctx, unitTypeID)
	if err != nil {
		return 0, fmt.Errorf("cascade unit type %s: %w", unitTypeID, err)
	}

	processed := s.fanOut(ctx, unitIDs, func(ctx context.Context, unitID string) error {
		_, err := s.ReindexUnit(ctx, unitID)
		return err
	})

	pkglog.Ctx(ctx).Info().
		Str(pkglog.FieldUnitTypeID, unitTypeID).
		Str("field", change.Field).
		Str("op", change.Op).
		Int("processed", processed).
		Int("attempted", len(unitIDs)).
		Msg("unit type cascade complete")

	return processed, nil
}

// fanOut runs fn per unit id bounded by the cascade ceiling. Each task
// reports into its own slot; results are reduced after all tasks finish so
// no counter is shared across goroutines.
func (s *Service) fanOut(ctx context.Context, unitIDs []string, fn func(ctx context.Context, unitID string) error) int {
	results := make([]bool, len(unitIDs))
	var wg sync.WaitGroup

	for i, unitID := range unitIDs {
		if ctx.Err() != nil {
			break
		}
		if err := s.fanout.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int, unitID string) {
			defer wg.Done()
			defer s.fanout.Release(1)

			if err := fn(ctx, unitID); err != nil {
				pkglog.Ctx(ctx).Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("cascade unit failed")
				return
			}
			results[i] = true
		}(i, unitID)
	}
	wg.Wait()

	processed := 0
	for _, ok := range results {
		if ok {
			processed++
		}
	}
	return processed
}

// RebuildAll drops both logical indexes and rebuilds every active unit,
// streaming source ids in pages of batchSize with a short pause between
// batches. Safe to re-run from scratch. Returns the number of units
// indexed.
func (s *Service) RebuildAll(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.RebuildBatchSize
	}
	l := pkglog.Ctx(ctx)

	s.markBuilding(ctx)

	if total, err := s.repo.CountActiveUnits(ctx); err == nil {
		l.Info().Int64("units", total).Int("batch_size", batchSize).Msg("index rebuild started")
	}

	if err := s.dropIndexes(ctx); err != nil {
		s.markError(ctx, err)
		return 0, err
	}

	indexed := 0
	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			s.markError(ctx, err)
			return indexed, err
		}

		unitIDs, err := s.repo.ActiveUnitIDs(ctx, offset, batchSize)
		if err != nil {
			s.markError(ctx, err)
			return indexed, fmt.Errorf("rebuild page at offset %d: %w", offset, err)
		}
		if len(unitIDs) == 0 {
			break
		}

		indexed += s.fanOut(ctx, unitIDs, func(ctx context.Context, unitID string) error {
			ok, err := s.IndexUnit(ctx, unitID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unit %s skipped", unitID)
			}
			return nil
		})

		l.Info().Int("indexed", indexed).Int("offset", offset).Msg("rebuild batch done")

		if s.cfg.RebuildPause > 0 {
			select {
			case <-ctx.Done():
				s.markError(ctx, ctx.Err())
				return indexed, ctx.Err()
			case <-time.After(s.cfg.RebuildPause):
			}
		}
	}

	s.markActive(ctx)
	l.Info().Int("indexed", indexed).Msg("full rebuild complete")
	return indexed, nil
}

// dropIndexes removes every document, index and temp key.
func (s *Service) dropIndexes(ctx context.Context) error {
	patterns := []string{
		store.UnitKeyPrefix + "*",
		store.ScheduleKeyPrefix + "*",
		"idx:*",
		store.TempKeyPrefix + "*",
	}

	batch := store.NewBatch()
	flush := func() error {
		if batch.Empty() {
			return nil
		}
		if err := s.store.Commit(ctx, batch); err != nil {
			return err
		}
		batch = store.NewBatch()
		return nil
	}

	for _, pattern := range patterns {
		err := s.store.Scan(ctx, pattern, func(key string) error {
			batch.Del = append(batch.Del, key)
			if len(batch.Del) >= 500 {
				return flush()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("drop indexes: %w", err)
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("drop indexes: %w", err)
	}
	return nil
}

// CleanupOrphans removes documents of units that are no longer active in
// the source, plus schedule indexes without a unit document and leftover
// temporary keys. Returns the number of orphaned units removed.
func (s *Service) CleanupOrphans(ctx context.Context) (int, error) {
	l := pkglog.Ctx(ctx)

	var unitIDs []string
	err := s.store.Scan(ctx, store.UnitKeyPrefix+"*", func(key string) error {
		if id := store.UnitIDFromKey(key); id != "" {
			unitIDs = append(unitIDs, id)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup scan units: %w", err)
	}

	removed := 0
	for _, unitID := range unitIDs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		active, err := s.repo.UnitActive(ctx, unitID)
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("cleanup liveness check failed")
			continue
		}
		if active {
			continue
		}

		unlock := s.locks.lock(unitID)
		err = s.removeUnit(ctx, unitID, "")
		unlock()
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("cleanup remove failed")
			continue
		}
		removed++
	}

	// Schedule indexes whose unit document vanished.
	var strays []string
	err = s.store.Scan(ctx, store.ScheduleByUnitPrefix+"*", func(key string) error {
		unitID := key[len(store.ScheduleByUnitPrefix):]
		if _, getErr := s.store.Get(ctx, store.UnitKey(unitID)); errors.Is(getErr, store.ErrKeyNotFound) {
			strays = append(strays, unitID)
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleanup scan schedules: %w", err)
	}
	for _, unitID := range strays {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		unlock := s.locks.lock(unitID)
		err = s.removeUnit(ctx, unitID, "")
		unlock()
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldUnitID, unitID).Msg("cleanup stray schedule failed")
		}
	}

	// Temp key sweep.
	tmpBatch := store.NewBatch()
	err = s.store.Scan(ctx, store.TempKeyPrefix+"*", func(key string) error {
		tmpBatch.Del = append(tmpBatch.Del, key)
		return nil
	})
	if err == nil && !tmpBatch.Empty() {
		if commitErr := s.store.Commit(ctx, tmpBatch); commitErr != nil {
			l.Warn().Err(commitErr).Msg("temp key sweep failed")
		}
	}

	s.touchMetadata(ctx)
	l.Info().Int("removed", removed).Msg("orphan cleanup complete")
	return removed, nil
}

// GetIndexStatistics returns metadata for both logical indexes with live
// record counts.
func (s *Service) GetIndexStatistics(ctx context.Context) (Statistics, error) {
	units := s.loadMeta(ctx, domain.IndexUnits)
	schedule := s.loadMeta(ctx, domain.IndexSchedule)

	if n, err := s.store.SCard(ctx, store.UnitsAllKey); err == nil {
		units.RecordCount = n
	} else {
		return Statistics{}, err
	}
	if n, err := s.store.ZCard(ctx, store.ScheduleDaysKey); err == nil {
		schedule.RecordCount = n
	} else {
		return Statistics{}, err
	}

	source, err := s.repo.CountActiveUnits(ctx)
	if err != nil {
		return Statistics{}, err
	}

	return Statistics{Units: units, Schedule: schedule, SourceUnits: source}, nil
}

// Metadata bookkeeping is best-effort: it never fails the triggering
// operation.

func (s *Service) loadMeta(ctx context.Context, name string) domain.IndexMetadata {
	meta := domain.IndexMetadata{Name: name, Status: domain.IndexActive}
	raw, err := s.store.Get(ctx, store.MetaKey(name))
	if err == nil {
		_ = json.Unmarshal([]byte(raw), &meta)
		meta.Name = name
	}
	return meta
}

func (s *Service) saveMeta(ctx context.Context, meta domain.IndexMetadata) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	batch := store.NewBatch()
	batch.Set[store.MetaKey(meta.Name)] = string(raw)
	if err := s.store.Commit(ctx, batch); err != nil {
		pkglog.Ctx(ctx).Warn().Err(err).Str(pkglog.FieldIndex, meta.Name).Msg("metadata save failed")
	}
}

func (s *Service) touchMetadata(ctx context.Context) {
	for _, name := range []string{domain.IndexUnits, domain.IndexSchedule} {
		meta := s.loadMeta(ctx, name)
		switch name {
		case domain.IndexUnits:
			if n, err := s.store.SCard(ctx, store.UnitsAllKey); err == nil {
				meta.RecordCount = n
			}
		case domain.IndexSchedule:
			if n, err := s.store.ZCard(ctx, store.ScheduleDaysKey); err == nil {
				meta.RecordCount = n
			}
		}
		meta.Touch()
		s.saveMeta(ctx, meta)
	}
}

func (s *Service) markBuilding(ctx context.Context) {
	for _, name := range []string{domain.IndexUnits, domain.IndexSchedule} {
		meta := s.loadMeta(ctx, name)
		meta.Status = domain.IndexBuilding
		meta.RebuildAttempts++
		meta.LastError = ""
		meta.Touch()
		s.saveMeta(ctx, meta)
	}
}

func (s *Service) markActive(ctx context.Context) {
	for _, name := range []string{domain.IndexUnits, domain.IndexSchedule} {
		meta := s.loadMeta(ctx, name)
		meta.Status = domain.IndexActive
		meta.LastError = ""
		switch name {
		case domain.IndexUnits:
			if n, err := s.store.SCard(ctx, store.UnitsAllKey); err == nil {
				meta.RecordCount = n
			}
		case domain.IndexSchedule:
			if n, err := s.store.ZCard(ctx, store.ScheduleDaysKey); err == nil {
				meta.RecordCount = n
			}
		}
		meta.Touch()
		s.saveMeta(ctx, meta)
	}
}

func (s *Service) markError(ctx context.Context, cause error) {
	for _, name := range []string{domain.IndexUnits, domain.IndexSchedule} {
		meta := s.loadMeta(ctx, name)
		meta.Status = domain.IndexError
		meta.LastError = cause.Error()
		meta.Touch()
		s.saveMeta(ctx, meta)
	}
}

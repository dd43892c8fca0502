package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/staysearch/unit-index/internal/domain"
)

type gormSourceRepository struct {
	db *gorm.DB
}

// NewGormSourceRepository creates a GORM-backed source repository.
func NewGormSourceRepository(db *gorm.DB) SourceRepository {
	return &gormSourceRepository{db: db}
}

func (r *gormSourceRepository) LoadUnitBundle(ctx context.Context, unitID string) (*UnitBundle, error) {
	if unitID == "" {
		return nil, fmt.Errorf("%w: empty unit id", domain.ErrInvalidArgument)
	}

	var unit UnitRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", unitID, true).
		First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load unit %s: %w", unitID, err)
	}

	var property PropertyRow
	err = r.db.WithContext(ctx).
		Where("id = ? AND active = ?", unit.PropertyID, true).
		First(&property).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load property %s: %w", unit.PropertyID, err)
	}

	bundle := &UnitBundle{Unit: unit, Property: property}

	if unit.UnitTypeID != "" {
		err = r.db.WithContext(ctx).
			Where("id = ?", unit.UnitTypeID).
			First(&bundle.UnitType).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load unit type %s: %w", unit.UnitTypeID, err)
		}
	}

	var amenities []UnitAmenityRow
	if err := r.db.WithContext(ctx).Where("unit_id = ?", unitID).Find(&amenities).Error; err != nil {
		return nil, fmt.Errorf("load amenities for unit %s: %w", unitID, err)
	}
	for _, a := range amenities {
		bundle.Amenities = append(bundle.Amenities, a.Name)
	}

	var services []UnitServiceRow
	if err := r.db.WithContext(ctx).Where("unit_id = ?", unitID).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("load services for unit %s: %w", unitID, err)
	}
	for _, s := range services {
		bundle.Services = append(bundle.Services, s.Name)
	}

	if err := r.db.WithContext(ctx).Where("unit_id = ?", unitID).Find(&bundle.Fields).Error; err != nil {
		return nil, fmt.Errorf("load field values for unit %s: %w", unitID, err)
	}

	err = r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("day").
		Find(&bundle.Days).Error
	if err != nil {
		return nil, fmt.Errorf("load day schedules for unit %s: %w", unitID, err)
	}

	return bundle, nil
}

func (r *gormSourceRepository) UnitActive(ctx context.Context, unitID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&UnitRow{}).
		Joins("JOIN properties ON properties.id = units.property_id AND properties.active = ? AND properties.deleted_at IS NULL", true).
		Where("units.id = ? AND units.active = ?", unitID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check unit %s active: %w", unitID, err)
	}
	return count > 0, nil
}

func (r *gormSourceRepository) ActiveUnitIDsByProperty(ctx context.Context, propertyID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UnitRow{}).
		Where("property_id = ? AND active = ?", propertyID, true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list units of property %s: %w", propertyID, err)
	}
	return ids, nil
}

func (r *gormSourceRepository) ActiveUnitIDsByUnitType(ctx context.Context, unitTypeID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UnitRow{}).
		Where("unit_type_id = ? AND active = ?", unitTypeID, true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list units of type %s: %w", unitTypeID, err)
	}
	return ids, nil
}

func (r *gormSourceRepository) ActiveUnitIDs(ctx context.Context, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UnitRow{}).
		Where("active = ?", true).
		Order("id").
		Offset(offset).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active units: %w", err)
	}
	return ids, nil
}

func (r *gormSourceRepository) CountActiveUnits(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&UnitRow{}).
		Where("active = ?", true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count active units: %w", err)
	}
	return count, nil
}

func (r *gormSourceRepository) DaySchedules(ctx context.Context, unitID string, from, to time.Time) ([]DayScheduleRow, error) {
	var rows []DayScheduleRow
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND day >= ? AND day < ?", unitID, domain.Midnight(from), domain.Midnight(to)).
		Order("day").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load day schedules for unit %s: %w", unitID, err)
	}
	return rows, nil
}

func (r *gormSourceRepository) DaySchedulesByBooking(ctx context.Context, bookingID string) ([]DayScheduleRow, error) {
	var rows []DayScheduleRow
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("day").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load day schedules for booking %s: %w", bookingID, err)
	}
	return rows, nil
}

func (r *gormSourceRepository) UpsertDaySchedules(ctx context.Context, rows []DayScheduleRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "unit_id"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "booking_id", "booking_state",
				"price", "currency", "price_tier",
				"reason", "notes", "updated_at",
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert %d day schedules: %w", len(rows), err)
	}
	return nil
}

func (r *gormSourceRepository) DeleteDaySchedules(ctx context.Context, unitID string, from, to time.Time) error {
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND day >= ? AND day < ?", unitID, domain.Midnight(from), domain.Midnight(to)).
		Delete(&DayScheduleRow{}).Error
	if err != nil {
		return fmt.Errorf("delete day schedules for unit %s: %w", unitID, err)
	}
	return nil
}

var _ SourceRepository = (*gormSourceRepository)(nil)

package repository

import (
	"context"
	"time"
)

// SourceRepository is the relational collaborator feeding the indexing
// pipeline. Reads are side-effect free; the only writes are day-schedule
// rows owned by the availability workflow.
type SourceRepository interface {
	// LoadUnitBundle loads the unit plus its property, unit type,
	// amenities, services, dynamic field values and every day-schedule
	// row. Returns domain.ErrNotFound for missing, inactive or deleted
	// units (and for units whose property is inactive or deleted).
	LoadUnitBundle(ctx context.Context, unitID string) (*UnitBundle, error)

	// UnitActive reports whether the unit exists, is active and not
	// deleted, with an active property.
	UnitActive(ctx context.Context, unitID string) (bool, error)

	ActiveUnitIDsByProperty(ctx context.Context, propertyID string) ([]string, error)
	ActiveUnitIDsByUnitType(ctx context.Context, unitTypeID string) ([]string, error)

	// ActiveUnitIDs streams active unit ids in stable order for full
	// rebuilds.
	ActiveUnitIDs(ctx context.Context, offset, limit int) ([]string, error)
	CountActiveUnits(ctx context.Context) (int64, error)

	// Day-schedule access for the availability workflow.
	DaySchedules(ctx context.Context, unitID string, from, to time.Time) ([]DayScheduleRow, error)
	DaySchedulesByBooking(ctx context.Context, bookingID string) ([]DayScheduleRow, error)
	UpsertDaySchedules(ctx context.Context, rows []DayScheduleRow) error
	DeleteDaySchedules(ctx context.Context, unitID string, from, to time.Time) error
}

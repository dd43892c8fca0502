package repository

import (
	"time"

	"gorm.io/gorm"
)

// Relational rows consumed by the indexing pipeline. The relational store
// is owned by an external system; this service reads units and writes only
// day-schedule rows on behalf of the booking workflow.

type UnitRow struct {
	ID          string  `gorm:"primaryKey"`
	PropertyID  string  `gorm:"index"`
	UnitTypeID  string  `gorm:"index"`
	Name        string
	BasePrice   float64
	Currency    string
	Capacity    int
	Rating      float64
	ReviewCount int
	Featured    bool
	Latitude    float64
	Longitude   float64
	Active      bool `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (UnitRow) TableName() string { return "units" }

type PropertyRow struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	Type       string
	City       string `gorm:"index"`
	StarRating int
	Active     bool
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (PropertyRow) TableName() string { return "properties" }

type UnitTypeRow struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func (UnitTypeRow) TableName() string { return "unit_types" }

type UnitAmenityRow struct {
	ID     uint   `gorm:"primaryKey"`
	UnitID string `gorm:"index"`
	Name   string
}

func (UnitAmenityRow) TableName() string { return "unit_amenities" }

type UnitServiceRow struct {
	ID     uint   `gorm:"primaryKey"`
	UnitID string `gorm:"index"`
	Name   string
}

func (UnitServiceRow) TableName() string { return "unit_services" }

// FieldValueRow is one dynamic-field value of a unit. Kind selects which
// of the typed value columns is meaningful.
type FieldValueRow struct {
	ID        uint   `gorm:"primaryKey"`
	UnitID    string `gorm:"index"`
	Name      string
	Kind      string // string, number, bool
	StrValue  string
	NumValue  float64
	BoolValue bool
}

func (FieldValueRow) TableName() string { return "unit_field_values" }

// DayScheduleRow is the per-unit-per-day pricing/availability row. At most
// one row exists per (unit, day).
type DayScheduleRow struct {
	ID           uint      `gorm:"primaryKey"`
	UnitID       string    `gorm:"uniqueIndex:ux_unit_day"`
	Day          time.Time `gorm:"uniqueIndex:ux_unit_day"`
	Status       string
	BookingID    string `gorm:"index"`
	BookingState string
	Price        float64
	Currency     string
	PriceTier    string
	Reason       string
	Notes        string
	UpdatedAt    time.Time
}

func (DayScheduleRow) TableName() string { return "day_schedules" }

// UnitBundle is the full unit state loaded in one batched read for a
// document build.
type UnitBundle struct {
	Unit      UnitRow
	Property  PropertyRow
	UnitType  UnitTypeRow
	Amenities []string
	Services  []string
	Fields    []FieldValueRow
	Days      []DayScheduleRow
}

package consumer

import (
	"context"

	"github.com/staysearch/unit-index/internal/indexer"
)

// ChangeEvent is one catalog change emitted by the booking platform.
// Entity and Op select the indexing reaction; only the ids relevant to
// the entity are populated.
type ChangeEvent struct {
	Entity string `json:"entity"` // unit, property, unit_type
	Op     string `json:"op"`     // created, updated, deleted

	UnitID     string `json:"unit_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
	UnitTypeID string `json:"unit_type_id,omitempty"`

	FieldChange *indexer.FieldChange `json:"field_change,omitempty"`
}

const (
	EntityUnit     = "unit"
	EntityProperty = "property"
	EntityUnitType = "unit_type"

	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ChangeHandler reacts to one catalog change event.
type ChangeHandler interface {
	HandleChange(ctx context.Context, event *ChangeEvent) error
}

// ChangeConsumer streams catalog change events to a handler.
type ChangeConsumer interface {
	Start(ctx context.Context) error
	Close() error
}

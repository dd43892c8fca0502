package consumer

import (
	"context"
	"fmt"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/indexer"
	pkglog "github.com/staysearch/unit-index/pkg/log"
)

// Indexing is the slice of the indexing service the dispatcher drives.
type Indexing interface {
	IndexUnit(ctx context.Context, unitID string) (bool, error)
	ReindexUnit(ctx context.Context, unitID string) (bool, error)
	DeleteUnit(ctx context.Context, unitID, propertyID string) error
	CascadeProperty(ctx context.Context, propertyID string, op indexer.CascadeOp) (int, error)
	CascadeUnitTypeFieldChange(ctx context.Context, unitTypeID string, change indexer.FieldChange) (int, error)
}

// Dispatcher translates catalog change events into indexing calls.
type Dispatcher struct {
	indexer Indexing
}

func NewDispatcher(idx Indexing) *Dispatcher {
	return &Dispatcher{indexer: idx}
}

var _ ChangeHandler = (*Dispatcher)(nil)

// HandleChange routes one event. Unknown entities and ops are logged and
// dropped so a schema drift upstream never wedges the consumer group.
func (d *Dispatcher) HandleChange(ctx context.Context, event *ChangeEvent) error {
	switch event.Entity {
	case EntityUnit:
		return d.handleUnit(ctx, event)
	case EntityProperty:
		return d.handleProperty(ctx, event)
	case EntityUnitType:
		return d.handleUnitType(ctx, event)
	default:
		pkglog.Ctx(ctx).Warn().Str("entity", event.Entity).Msg("dropping change event for unknown entity")
		return nil
	}
}

func (d *Dispatcher) handleUnit(ctx context.Context, event *ChangeEvent) error {
	if event.UnitID == "" {
		return fmt.Errorf("unit event without unit id: %w", domain.ErrInvalidArgument)
	}

	switch event.Op {
	case OpCreated:
		_, err := d.indexer.IndexUnit(ctx, event.UnitID)
		return err
	case OpUpdated:
		_, err := d.indexer.ReindexUnit(ctx, event.UnitID)
		return err
	case OpDeleted:
		return d.indexer.DeleteUnit(ctx, event.UnitID, event.PropertyID)
	default:
		pkglog.Ctx(ctx).Warn().Str("op", event.Op).Msg("dropping unit event with unknown op")
		return nil
	}
}

func (d *Dispatcher) handleProperty(ctx context.Context, event *ChangeEvent) error {
	if event.PropertyID == "" {
		return fmt.Errorf("property event without property id: %w", domain.ErrInvalidArgument)
	}

	var op indexer.CascadeOp
	switch event.Op {
	case OpCreated:
		op = indexer.CascadeCreated
	case OpUpdated:
		op = indexer.CascadeUpdated
	case OpDeleted:
		op = indexer.CascadeDeleted
	default:
		pkglog.Ctx(ctx).Warn().Str("op", event.Op).Msg("dropping property event with unknown op")
		return nil
	}

	done, err := d.indexer.CascadeProperty(ctx, event.PropertyID, op)
	if err != nil {
		return err
	}
	pkglog.Ctx(ctx).Info().
		Str(pkglog.FieldPropertyID, event.PropertyID).
		Str("op", event.Op).
		Int("units", done).
		Msg("property cascade applied")
	return nil
}

func (d *Dispatcher) handleUnitType(ctx context.Context, event *ChangeEvent) error {
	if event.UnitTypeID == "" {
		return fmt.Errorf("unit-type event without unit type id: %w", domain.ErrInvalidArgument)
	}

	// Only field mutations matter to the index; a plain unit-type update
	// surfaces through each unit's own updated event.
	if event.FieldChange == nil {
		pkglog.Ctx(ctx).Debug().
			Str(pkglog.FieldUnitTypeID, event.UnitTypeID).
			Msg("ignoring unit-type event without field change")
		return nil
	}

	done, err := d.indexer.CascadeUnitTypeFieldChange(ctx, event.UnitTypeID, *event.FieldChange)
	if err != nil {
		return err
	}
	pkglog.Ctx(ctx).Info().
		Str(pkglog.FieldUnitTypeID, event.UnitTypeID).
		Str("field", event.FieldChange.Field).
		Int("units", done).
		Msg("unit-type field cascade applied")
	return nil
}

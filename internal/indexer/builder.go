package indexer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/staysearch/unit-index/internal/domain"
	"github.com/staysearch/unit-index/internal/repository"
	"github.com/staysearch/unit-index/internal/store"
)

// buildDocuments projects the relational unit bundle into the unit
// document and one day-schedule document per source row.
func buildDocuments(bundle *repository.UnitBundle, now time.Time) (domain.UnitDocument, []domain.DayScheduleDocument) {
	unit := bundle.Unit

	doc := domain.UnitDocument{
		UnitID:       unit.ID,
		PropertyID:   unit.PropertyID,
		UnitTypeID:   unit.UnitTypeID,
		Name:         unit.Name,
		PropertyName: bundle.Property.Name,
		PropertyType: bundle.Property.Type,
		UnitTypeName: bundle.UnitType.Name,
		City:         bundle.Property.City,
		BasePrice:    unit.BasePrice,
		Currency:     unit.Currency,
		Capacity:     unit.Capacity,
		Amenities:    bundle.Amenities,
		Services:     bundle.Services,
		Rating:       unit.Rating,
		ReviewCount:  unit.ReviewCount,
		StarRating:   bundle.Property.StarRating,
		Featured:     unit.Featured,
		Latitude:     unit.Latitude,
		Longitude:    unit.Longitude,
		IndexedAt:    now,
	}

	if len(bundle.Fields) > 0 {
		doc.Fields = make(map[string]domain.FieldValue, len(bundle.Fields))
		for _, row := range bundle.Fields {
			doc.Fields[row.Name] = fieldValueFromRow(row)
		}
	}

	days := make([]domain.DayScheduleDocument, 0, len(bundle.Days))
	for _, row := range bundle.Days {
		days = append(days, domain.DayScheduleDocument{
			UnitID:       unit.ID,
			Day:          domain.Midnight(row.Day),
			Status:       domain.AvailabilityStatus(row.Status),
			BookingID:    row.BookingID,
			BookingState: domain.BookingState(row.BookingState),
			Price:        row.Price,
			Currency:     row.Currency,
			PriceTier:    row.PriceTier,
			Reason:       row.Reason,
			Notes:        row.Notes,
		})
	}

	return doc, days
}

func fieldValueFromRow(row repository.FieldValueRow) domain.FieldValue {
	switch domain.FieldKind(row.Kind) {
	case domain.FieldKindNumber:
		return domain.NumberValue(row.NumValue)
	case domain.FieldKindBool:
		return domain.BoolValue(row.BoolValue)
	default:
		return domain.StringValue(row.StrValue)
	}
}

// buildCommitBatch assembles the atomic write for one unit: the unit
// document, every day-schedule document, and all secondary-index entries.
func buildCommitBatch(doc domain.UnitDocument, days []domain.DayScheduleDocument) (*store.Batch, error) {
	b := store.NewBatch()

	unitJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal unit document %s: %w", doc.UnitID, err)
	}
	b.Set[store.UnitKey(doc.UnitID)] = string(unitJSON)

	b.SAdd[store.UnitsAllKey] = []string{doc.UnitID}
	b.SAdd[store.UnitsByPropertyKey(doc.PropertyID)] = []string{doc.UnitID}
	if doc.City != "" {
		b.SAdd[store.UnitsByCityKey(doc.City)] = []string{doc.UnitID}
	}
	if doc.UnitTypeID != "" {
		b.SAdd[store.UnitsByTypeKey(doc.UnitTypeID)] = []string{doc.UnitID}
	}

	for _, day := range days {
		dayJSON, err := json.Marshal(day)
		if err != nil {
			return nil, fmt.Errorf("marshal day schedule %s/%s: %w", day.UnitID, domain.DayKey(day.Day), err)
		}
		b.Set[store.ScheduleKey(day.UnitID, day.Day)] = string(dayJSON)

		score := store.DayScore(day.Day)
		b.ZAdd[store.ScheduleByUnitKey(day.UnitID)] = append(
			b.ZAdd[store.ScheduleByUnitKey(day.UnitID)],
			store.Member{Score: score, ID: domain.DayKey(day.Day)},
		)
		b.ZAdd[store.ScheduleDaysKey] = append(
			b.ZAdd[store.ScheduleDaysKey],
			store.Member{Score: score, ID: store.ScheduleDayMember(day.UnitID, day.Day)},
		)
	}

	return b, nil
}

// deleteBatch assembles the atomic removal of a unit: document keys,
// schedule keys and every secondary-index entry. dayKeys are the yyyymmdd
// keys currently indexed for the unit.
func deleteBatch(unitID, propertyID, city, unitTypeID string, dayKeys []string) *store.Batch {
	b := store.NewBatch()

	b.Del = append(b.Del, store.UnitKey(unitID), store.ScheduleByUnitKey(unitID))
	b.SRem[store.UnitsAllKey] = []string{unitID}
	if propertyID != "" {
		b.SRem[store.UnitsByPropertyKey(propertyID)] = []string{unitID}
	}
	if city != "" {
		b.SRem[store.UnitsByCityKey(city)] = []string{unitID}
	}
	if unitTypeID != "" {
		b.SRem[store.UnitsByTypeKey(unitTypeID)] = []string{unitID}
	}

	for _, dayKey := range dayKeys {
		b.Del = append(b.Del, store.ScheduleKeyPrefix+unitID+":"+dayKey)
		b.ZRem[store.ScheduleDaysKey] = append(
			b.ZRem[store.ScheduleDaysKey],
			store.ScheduleDayMemberKey(unitID, dayKey),
		)
	}

	return b
}

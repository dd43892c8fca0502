package store

import (
	"strings"
	"time"

	"github.com/staysearch/unit-index/internal/domain"
)

// Key layout. Documents are JSON values under unit:/schedule: keys; the
// secondary indexes are sets (unit lookups) and sorted sets (schedule
// lookups scored by day timestamp).
const (
	UnitKeyPrefix     = "unit:"
	ScheduleKeyPrefix = "schedule:"
	TempKeyPrefix     = "tmp:"
	MetaKeyPrefix     = "meta:"

	UnitsAllKey           = "idx:units:all"
	UnitsByPropertyPrefix = "idx:units:property:"
	UnitsByCityPrefix     = "idx:units:city:"
	UnitsByTypePrefix     = "idx:units:type:"

	ScheduleByUnitPrefix = "idx:schedule:unit:"
	ScheduleDaysKey      = "idx:schedule:days"

	memberSep = "|"
)

// UnitKey returns the document key for a unit.
func UnitKey(unitID string) string {
	return UnitKeyPrefix + unitID
}

// ScheduleKey returns the document key for one (unit, day) record.
func ScheduleKey(unitID string, day time.Time) string {
	return ScheduleKeyPrefix + unitID + ":" + domain.DayKey(day)
}

// MetaKey returns the metadata key for a logical index.
func MetaKey(index string) string {
	return MetaKeyPrefix + index
}

// UnitsByPropertyKey returns the set key listing a property's unit ids.
func UnitsByPropertyKey(propertyID string) string {
	return UnitsByPropertyPrefix + propertyID
}

// UnitsByCityKey returns the set key listing a city's unit ids.
func UnitsByCityKey(city string) string {
	return UnitsByCityPrefix + strings.ToLower(strings.TrimSpace(city))
}

// UnitsByTypeKey returns the set key listing a unit type's unit ids.
func UnitsByTypeKey(unitTypeID string) string {
	return UnitsByTypePrefix + unitTypeID
}

// ScheduleByUnitKey returns the sorted-set key of one unit's schedule days.
func ScheduleByUnitKey(unitID string) string {
	return ScheduleByUnitPrefix + unitID
}

// ScheduleDayMember encodes the global schedule-index member for one
// (unit, day). The member carries both halves so a single range query
// over the day score can recover the document key.
func ScheduleDayMember(unitID string, day time.Time) string {
	return unitID + memberSep + domain.DayKey(day)
}

// ScheduleDayMemberKey is ScheduleDayMember for an already-encoded day key.
func ScheduleDayMemberKey(unitID, dayKey string) string {
	return unitID + memberSep + dayKey
}

// SplitScheduleDayMember decodes a member produced by ScheduleDayMember.
func SplitScheduleDayMember(member string) (unitID, dayKey string, ok bool) {
	i := strings.LastIndex(member, memberSep)
	if i < 0 {
		return "", "", false
	}
	return member[:i], member[i+1:], true
}

// DayScore returns the sorted-set score for a calendar day.
func DayScore(day time.Time) float64 {
	return float64(domain.Midnight(day).Unix())
}

// UnitIDFromKey strips the unit document prefix, returning "" for other keys.
func UnitIDFromKey(key string) string {
	if !strings.HasPrefix(key, UnitKeyPrefix) {
		return ""
	}
	return strings.TrimPrefix(key, UnitKeyPrefix)
}

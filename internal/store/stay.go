package store

import "github.com/staysearch/unit-index/internal/domain"

// AggregateStay folds schedule documents into per-unit stay aggregates.
// Shared by the in-memory store and the Redis fallback path so both agree
// with the server-side script.
func AggregateStay(docs []domain.DayScheduleDocument) map[string]UnitStay {
	out := make(map[string]UnitStay)
	for _, doc := range docs {
		agg := out[doc.UnitID]
		if doc.Blocking() {
			agg.Blocked = true
		}
		agg.PricedNights++
		agg.PriceSum += doc.Price
		out[doc.UnitID] = agg
	}
	return out
}

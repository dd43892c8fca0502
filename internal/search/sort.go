package search

import (
	"sort"
	"strings"

	"github.com/staysearch/unit-index/internal/domain"
)

// sortUnits orders summaries in place. Every ordering falls back to the
// unit ID so repeated searches paginate over a stable sequence.
func sortUnits(units []domain.UnitSummary, key domain.SortKey) {
	less := unitLess(key)
	sort.SliceStable(units, func(i, j int) bool { return less(units[i], units[j]) })
}

func unitLess(key domain.SortKey) func(a, b domain.UnitSummary) bool {
	switch key {
	case domain.SortPriceAsc:
		return func(a, b domain.UnitSummary) bool {
			if a.TotalPrice != b.TotalPrice {
				return a.TotalPrice < b.TotalPrice
			}
			return a.UnitID < b.UnitID
		}
	case domain.SortPriceDesc:
		return func(a, b domain.UnitSummary) bool {
			if a.TotalPrice != b.TotalPrice {
				return a.TotalPrice > b.TotalPrice
			}
			return a.UnitID < b.UnitID
		}
	case domain.SortRating, domain.SortRelevance:
		return func(a, b domain.UnitSummary) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.UnitID < b.UnitID
		}
	case domain.SortName:
		return func(a, b domain.UnitSummary) bool {
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
			return a.UnitID < b.UnitID
		}
	default:
		return func(a, b domain.UnitSummary) bool { return a.UnitID < b.UnitID }
	}
}

func sortProperties(props []domain.PropertySummary, key domain.SortKey) {
	less := propertyLess(key)
	sort.SliceStable(props, func(i, j int) bool { return less(props[i], props[j]) })
}

func propertyLess(key domain.SortKey) func(a, b domain.PropertySummary) bool {
	switch key {
	case domain.SortPriceAsc:
		return func(a, b domain.PropertySummary) bool {
			if a.MinPrice != b.MinPrice {
				return a.MinPrice < b.MinPrice
			}
			return a.PropertyID < b.PropertyID
		}
	case domain.SortPriceDesc:
		return func(a, b domain.PropertySummary) bool {
			if a.MaxPrice != b.MaxPrice {
				return a.MaxPrice > b.MaxPrice
			}
			return a.PropertyID < b.PropertyID
		}
	case domain.SortRating, domain.SortRelevance:
		return func(a, b domain.PropertySummary) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.PropertyID < b.PropertyID
		}
	case domain.SortName:
		return func(a, b domain.PropertySummary) bool {
			an, bn := strings.ToLower(a.PropertyName), strings.ToLower(b.PropertyName)
			if an != bn {
				return an < bn
			}
			return a.PropertyID < b.PropertyID
		}
	default:
		return func(a, b domain.PropertySummary) bool { return a.PropertyID < b.PropertyID }
	}
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

package relax

import (
	"fmt"
	"sort"
	"strings"

	"github.com/staysearch/unit-index/internal/domain"
)

// Level is one step in the ordered relaxation sequence. Each level widens
// the filter set accepted by the previous one.
type Level int

const (
	Exact Level = iota
	Minor
	Moderate
	Major
	Alternative
)

func (l Level) String() string {
	switch l {
	case Exact:
		return "exact"
	case Minor:
		return "minor"
	case Moderate:
		return "moderate"
	case Major:
		return "major"
	case Alternative:
		return "alternative_suggestions"
	}
	return "unknown"
}

// Next returns the following level, or false when l is the last one.
func Next(l Level) (Level, bool) {
	if l >= Alternative {
		return l, false
	}
	return l + 1, true
}

// Options tunes the relaxation steps. City adjacency is injected here so
// tests can substitute alternate geographies.
type Options struct {
	MinResults int `mapstructure:"min_results"`

	MinorPricePct    float64 `mapstructure:"minor_price_pct"`
	ModeratePricePct float64 `mapstructure:"moderate_price_pct"`
	MajorPricePct    float64 `mapstructure:"major_price_pct"`

	AmenityRetention float64 `mapstructure:"amenity_retention"`
	RatingReduction  float64 `mapstructure:"rating_reduction"`

	ModerateGeoFactor float64 `mapstructure:"moderate_geo_factor"`
	MajorGeoFactor    float64 `mapstructure:"major_geo_factor"`

	GuestReduction int `mapstructure:"guest_reduction"`
	DateFlexDays   int `mapstructure:"date_flex_days"`

	CriticalFields     []string            `mapstructure:"critical_fields"`
	AlternativePageCap int                 `mapstructure:"alternative_page_cap"`
	CityGroups         map[string][]string `mapstructure:"city_groups"`
}

// Defaults returns the standard relaxation tuning.
func Defaults() Options {
	return Options{
		MinResults:         5,
		MinorPricePct:      0.15,
		ModeratePricePct:   0.30,
		MajorPricePct:      0.50,
		AmenityRetention:   0.5,
		RatingReduction:    0.5,
		ModerateGeoFactor:  1.5,
		MajorGeoFactor:     2.5,
		GuestReduction:     1,
		DateFlexDays:       2,
		AlternativePageCap: 10,
	}
}

func (o Options) withDefaults() Options {
	d := Defaults()
	if o.MinResults <= 0 {
		o.MinResults = d.MinResults
	}
	if o.MinorPricePct <= 0 {
		o.MinorPricePct = d.MinorPricePct
	}
	if o.ModeratePricePct <= 0 {
		o.ModeratePricePct = d.ModeratePricePct
	}
	if o.MajorPricePct <= 0 {
		o.MajorPricePct = d.MajorPricePct
	}
	if o.AmenityRetention <= 0 {
		o.AmenityRetention = d.AmenityRetention
	}
	if o.RatingReduction <= 0 {
		o.RatingReduction = d.RatingReduction
	}
	if o.ModerateGeoFactor <= 1 {
		o.ModerateGeoFactor = d.ModerateGeoFactor
	}
	if o.MajorGeoFactor <= 1 {
		o.MajorGeoFactor = d.MajorGeoFactor
	}
	if o.GuestReduction <= 0 {
		o.GuestReduction = d.GuestReduction
	}
	if o.DateFlexDays <= 0 {
		o.DateFlexDays = d.DateFlexDays
	}
	if o.AlternativePageCap <= 0 {
		o.AlternativePageCap = d.AlternativePageCap
	}
	return o
}

// Apply derives the relaxed request for one level from the original
// request. The original is never mutated; every level starts from a fresh
// deep copy so widening steps override rather than compound across calls.
// The returned descriptions list what was relaxed, in application order.
func Apply(original *domain.SearchRequest, level Level, opts Options) (*domain.SearchRequest, []string) {
	opts = opts.withDefaults()

	if level == Alternative {
		return alternative(original, opts)
	}

	req := original.Clone()
	var applied []string

	switch level {
	case Exact:
		return req, nil
	case Minor:
		applied = minorSteps(req, original, opts, opts.MinorPricePct)
	case Moderate:
		applied = minorSteps(req, original, opts, opts.ModeratePricePct)
		applied = append(applied, moderateSteps(req, original, opts, opts.ModerateGeoFactor)...)
	case Major:
		applied = minorSteps(req, original, opts, opts.MajorPricePct)
		applied = append(applied, moderateSteps(req, original, opts, opts.MajorGeoFactor)...)
		applied = append(applied, majorSteps(req, opts)...)
	}

	return req, applied
}

// minorSteps widens price bounds, trims required amenities, lowers the
// rating floor and drops non-critical dynamic-field filters.
func minorSteps(req, original *domain.SearchRequest, opts Options, pricePct float64) []string {
	var applied []string

	if original.MinPrice != nil || original.MaxPrice != nil {
		if original.MinPrice != nil {
			v := *original.MinPrice * (1 - pricePct)
			if v < 0 {
				v = 0
			}
			req.MinPrice = &v
		}
		if original.MaxPrice != nil {
			v := *original.MaxPrice * (1 + pricePct)
			req.MaxPrice = &v
		}
		applied = append(applied, fmt.Sprintf("widened price range by ±%.0f%%", pricePct*100))
	}

	if keep := retainCount(len(original.Amenities), opts.AmenityRetention); keep < len(original.Amenities) {
		req.Amenities = append([]string(nil), original.Amenities[:keep]...)
		applied = append(applied, fmt.Sprintf("kept %d of %d required amenities", keep, len(original.Amenities)))
	}

	if original.MinRating != nil {
		v := *original.MinRating - opts.RatingReduction
		if v < 0 {
			v = 0
		}
		req.MinRating = &v
		applied = append(applied, fmt.Sprintf("lowered minimum rating from %.1f to %.1f", *original.MinRating, v))
	}

	if len(original.Fields) > 0 {
		critical := make(map[string]struct{}, len(opts.CriticalFields))
		for _, name := range opts.CriticalFields {
			critical[name] = struct{}{}
		}
		kept := make(map[string]domain.FieldValue)
		var dropped []string
		for name, val := range original.Fields {
			if _, ok := critical[name]; ok {
				kept[name] = val
			} else {
				dropped = append(dropped, name)
			}
		}
		if len(dropped) > 0 {
			sort.Strings(dropped)
			req.Fields = kept
			applied = append(applied, fmt.Sprintf("dropped non-critical field filters: %s", strings.Join(dropped, ", ")))
		}
	}

	return applied
}

// moderateSteps widens the geo radius, pulls in adjacent cities, lowers
// the guest count and clears the star-rating floor.
func moderateSteps(req, original *domain.SearchRequest, opts Options, geoFactor float64) []string {
	var applied []string

	if original.Geo != nil && original.Geo.RadiusKm > 0 {
		req.Geo.RadiusKm = original.Geo.RadiusKm * geoFactor
		applied = append(applied, fmt.Sprintf("expanded search radius ×%.1f", geoFactor))
	}

	if original.City != "" {
		if adjacent := opts.CityGroups[strings.ToLower(original.City)]; len(adjacent) > 0 {
			req.AdjacentCities = append([]string(nil), adjacent...)
			applied = append(applied, fmt.Sprintf("added nearby cities: %s", strings.Join(adjacent, ", ")))
		}
	}

	if original.Guests != nil && *original.Guests > 1 {
		v := *original.Guests - opts.GuestReduction
		if v < 1 {
			v = 1
		}
		req.Guests = &v
		applied = append(applied, fmt.Sprintf("reduced guest count from %d to %d", *original.Guests, v))
	}

	if original.MinStars != nil {
		req.MinStars = nil
		applied = append(applied, "cleared star-rating filter")
	}

	return applied
}

// majorSteps records date flexibility and clears amenity and field
// filters entirely. Dates themselves are never shifted here.
func majorSteps(req *domain.SearchRequest, opts Options) []string {
	var applied []string

	if req.Dated() {
		applied = append(applied, fmt.Sprintf("consider flexible dates (±%d days)", opts.DateFlexDays))
	}

	if len(req.Amenities) > 0 {
		req.Amenities = nil
		applied = append(applied, "cleared required amenities")
	}

	if len(req.Fields) > 0 {
		req.Fields = nil
		applied = append(applied, "cleared field filters")
	}

	return applied
}

// alternative is a guarded reset: it retains only city, property type,
// unit type and dates from the original and clears everything else. When
// none of those base criteria exist it refuses to widen to the universal
// candidate set and applies a featured-only safety floor instead.
func alternative(original *domain.SearchRequest, opts Options) (*domain.SearchRequest, []string) {
	hasBase := original.City != "" ||
		len(original.PropertyTypeIDs) > 0 ||
		len(original.UnitTypeIDs) > 0 ||
		original.Dated()

	if !hasBase {
		req := &domain.SearchRequest{
			FeaturedOnly: true,
			Sort:         domain.SortRelevance,
			Page:         1,
			PageSize:     opts.AlternativePageCap,
		}
		return req, []string{
			"no base criteria in request; restricted to featured units",
			fmt.Sprintf("capped page size at %d", opts.AlternativePageCap),
		}
	}

	clone := original.Clone()
	req := &domain.SearchRequest{
		City:            clone.City,
		PropertyTypeIDs: clone.PropertyTypeIDs,
		UnitTypeIDs:     clone.UnitTypeIDs,
		CheckIn:         clone.CheckIn,
		CheckOut:        clone.CheckOut,
		Sort:            domain.SortRelevance,
		Page:            1,
		PageSize:        original.PageSize,
	}
	return req, []string{"reset all filters except location, type and dates"}
}

func retainCount(n int, ratio float64) int {
	if n == 0 {
		return 0
	}
	keep := int(float64(n) * ratio)
	if keep < 1 {
		keep = 1
	}
	if keep > n {
		keep = n
	}
	return keep
}

package domain

import "time"

// SortKey selects the result ordering.
type SortKey string

const (
	SortDefault   SortKey = ""
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortRating    SortKey = "rating"
	SortName      SortKey = "name"
	SortRelevance SortKey = "relevance"
)

// GeoFilter restricts results to a radius around a center point.
type GeoFilter struct {
	Latitude  float64 `json:"latitude" form:"lat"`
	Longitude float64 `json:"longitude" form:"lon"`
	RadiusKm  float64 `json:"radius_km" form:"radius_km"`
}

// SearchRequest is the immutable search input. The engine and the
// relaxation levels never mutate a caller's request; use Clone.
type SearchRequest struct {
	Text            string   `json:"text,omitempty" form:"q"`
	City            string   `json:"city,omitempty" form:"city"`
	AdjacentCities  []string `json:"adjacent_cities,omitempty"`
	PropertyTypeIDs []string `json:"property_type_ids,omitempty" form:"property_type"`
	UnitTypeIDs     []string `json:"unit_type_ids,omitempty" form:"unit_type"`

	CheckIn  *time.Time `json:"check_in,omitempty" form:"check_in" time_format:"2006-01-02"`
	CheckOut *time.Time `json:"check_out,omitempty" form:"check_out" time_format:"2006-01-02"`

	MinPrice  *float64 `json:"min_price,omitempty" form:"min_price"`
	MaxPrice  *float64 `json:"max_price,omitempty" form:"max_price"`
	MinRating *float64 `json:"min_rating,omitempty" form:"min_rating"`
	MinStars  *int     `json:"min_stars,omitempty" form:"min_stars"`
	Guests    *int     `json:"guests,omitempty" form:"guests"`

	Amenities []string              `json:"amenities,omitempty" form:"amenities"`
	Services  []string              `json:"services,omitempty" form:"services"`
	Fields    map[string]FieldValue `json:"fields,omitempty"`
	Geo       *GeoFilter            `json:"geo,omitempty"`

	FeaturedOnly bool `json:"featured_only,omitempty" form:"featured_only"`

	Sort     SortKey `json:"sort,omitempty" form:"sort"`
	Page     int     `json:"page,omitempty" form:"page"`
	PageSize int     `json:"page_size,omitempty" form:"page_size"`
}

// Dated reports whether both stay dates are present.
func (r *SearchRequest) Dated() bool {
	return r.CheckIn != nil && r.CheckOut != nil
}

// StayNights returns the number of nights requested, 0 for date-less requests.
func (r *SearchRequest) StayNights() int {
	if !r.Dated() {
		return 0
	}
	return NightCount(*r.CheckIn, *r.CheckOut)
}

// Clone returns a deep copy of the request.
func (r *SearchRequest) Clone() *SearchRequest {
	out := *r

	out.AdjacentCities = append([]string(nil), r.AdjacentCities...)
	out.PropertyTypeIDs = append([]string(nil), r.PropertyTypeIDs...)
	out.UnitTypeIDs = append([]string(nil), r.UnitTypeIDs...)
	out.Amenities = append([]string(nil), r.Amenities...)
	out.Services = append([]string(nil), r.Services...)

	if r.CheckIn != nil {
		t := *r.CheckIn
		out.CheckIn = &t
	}
	if r.CheckOut != nil {
		t := *r.CheckOut
		out.CheckOut = &t
	}
	out.MinPrice = cloneFloat(r.MinPrice)
	out.MaxPrice = cloneFloat(r.MaxPrice)
	out.MinRating = cloneFloat(r.MinRating)
	if r.MinStars != nil {
		v := *r.MinStars
		out.MinStars = &v
	}
	if r.Guests != nil {
		v := *r.Guests
		out.Guests = &v
	}
	if r.Geo != nil {
		g := *r.Geo
		out.Geo = &g
	}
	if r.Fields != nil {
		out.Fields = make(map[string]FieldValue, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}

	return &out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// UnitSummary is one ranked search hit with the resolved stay price.
type UnitSummary struct {
	UnitID       string  `json:"unit_id"`
	PropertyID   string  `json:"property_id"`
	Name         string  `json:"name"`
	PropertyName string  `json:"property_name"`
	City         string  `json:"city"`
	BasePrice    float64 `json:"base_price"`
	TotalPrice   float64 `json:"total_price"`
	Currency     string  `json:"currency"`
	Capacity     int     `json:"capacity"`
	Rating       float64 `json:"rating"`
	StarRating   int     `json:"star_rating"`
	Featured     bool    `json:"featured"`
}

// SearchResult is a ranked page of unit summaries. It is always returned,
// possibly empty, with elapsed time; Degraded flags a store failure that
// was converted to an empty result.
type SearchResult struct {
	Units    []UnitSummary `json:"units"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`

	ElapsedMs int64 `json:"elapsed_ms"`
	Degraded  bool  `json:"degraded,omitempty"`

	RelaxationLevel string   `json:"relaxation_level,omitempty"`
	Relaxations     []string `json:"relaxations,omitempty"`
}

// PropertySummary is one property roll-up hit.
type PropertySummary struct {
	PropertyID   string        `json:"property_id"`
	PropertyName string        `json:"property_name"`
	City         string        `json:"city"`
	MinPrice     float64       `json:"min_price"`
	MaxPrice     float64       `json:"max_price"`
	Rating       float64       `json:"rating"`
	Units        []UnitSummary `json:"units"`
}

// PropertyResult is a ranked page of property roll-ups.
type PropertyResult struct {
	Properties []PropertySummary `json:"properties"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	ElapsedMs  int64             `json:"elapsed_ms"`
	Degraded   bool              `json:"degraded,omitempty"`
}

package domain

import "time"

// UnitDocument is the denormalized index document for one active unit.
// It exists iff the source unit is active and not deleted; absence means
// the unit is not searchable.
type UnitDocument struct {
	UnitID       string `json:"unit_id"`
	PropertyID   string `json:"property_id"`
	UnitTypeID   string `json:"unit_type_id"`
	Name         string `json:"name"`
	PropertyName string `json:"property_name"`
	PropertyType string `json:"property_type"`
	UnitTypeName string `json:"unit_type_name"`
	City         string `json:"city"`

	BasePrice float64 `json:"base_price"`
	Currency  string  `json:"currency"`
	Capacity  int     `json:"capacity"`

	Amenities []string              `json:"amenities,omitempty"`
	Services  []string              `json:"services,omitempty"`
	Fields    map[string]FieldValue `json:"fields,omitempty"`

	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	StarRating  int     `json:"star_rating"`
	Featured    bool    `json:"featured"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	IndexedAt time.Time `json:"indexed_at"`
}

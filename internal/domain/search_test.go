package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRequestClone(t *testing.T) {
	checkIn := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 4)
	maxPrice := 500.0
	guests := 3

	orig := &SearchRequest{
		City:      "lisbon",
		Amenities: []string{"wifi", "pool"},
		CheckIn:   &checkIn,
		CheckOut:  &checkOut,
		MaxPrice:  &maxPrice,
		Guests:    &guests,
		Fields:    map[string]FieldValue{"view": StringValue("sea")},
		Geo:       &GeoFilter{Latitude: 38.7, Longitude: -9.1, RadiusKm: 10},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	// mutating the clone must not leak into the original
	clone.Amenities[0] = "parking"
	*clone.MaxPrice = 100
	*clone.Guests = 9
	clone.Fields["view"] = StringValue("city")
	clone.Geo.RadiusKm = 99
	*clone.CheckIn = checkIn.AddDate(0, 0, 1)

	assert.Equal(t, "wifi", orig.Amenities[0])
	assert.Equal(t, 500.0, *orig.MaxPrice)
	assert.Equal(t, 3, *orig.Guests)
	assert.True(t, orig.Fields["view"].Equal(StringValue("sea")))
	assert.Equal(t, 10.0, orig.Geo.RadiusKm)
	assert.Equal(t, checkIn, *orig.CheckIn)
}

func TestSearchRequestStayNights(t *testing.T) {
	var req SearchRequest
	assert.False(t, req.Dated())
	assert.Equal(t, 0, req.StayNights())

	checkIn := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 2)
	req.CheckIn, req.CheckOut = &checkIn, &checkOut
	assert.True(t, req.Dated())
	assert.Equal(t, 2, req.StayNights())
}

package search

import (
	"math"
	"strings"

	"github.com/staysearch/unit-index/internal/domain"
)

// matchUnit applies every non-date, non-price filter of the request to a
// unit document. Price is filtered later against the computed stay total.
func matchUnit(doc *domain.UnitDocument, req *domain.SearchRequest) bool {
	if req.Text != "" && !matchText(doc, req.Text) {
		return false
	}
	if req.City != "" && !matchCity(doc, req) {
		return false
	}
	if len(req.PropertyTypeIDs) > 0 && !containsFold(req.PropertyTypeIDs, doc.PropertyType) {
		return false
	}
	if len(req.UnitTypeIDs) > 0 && !containsFold(req.UnitTypeIDs, doc.UnitTypeID) {
		return false
	}
	if req.Guests != nil && doc.Capacity < *req.Guests {
		return false
	}
	if req.MinRating != nil && doc.Rating < *req.MinRating {
		return false
	}
	if req.MinStars != nil && doc.StarRating < *req.MinStars {
		return false
	}
	if req.FeaturedOnly && !doc.Featured {
		return false
	}
	for _, amenity := range req.Amenities {
		if !containsFold(doc.Amenities, amenity) {
			return false
		}
	}
	for _, service := range req.Services {
		if !containsFold(doc.Services, service) {
			return false
		}
	}
	for name, want := range req.Fields {
		have, ok := doc.Fields[name]
		if !ok || !have.Equal(want) {
			return false
		}
	}
	if req.Geo != nil && req.Geo.RadiusKm > 0 {
		if haversineKm(req.Geo.Latitude, req.Geo.Longitude, doc.Latitude, doc.Longitude) > req.Geo.RadiusKm {
			return false
		}
	}
	return true
}

func matchText(doc *domain.UnitDocument, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, hay := range []string{doc.Name, doc.PropertyName, doc.City, doc.UnitTypeName} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// matchCity accepts the requested city and, for relaxed requests, any of
// its adjacent cities.
func matchCity(doc *domain.UnitDocument, req *domain.SearchRequest) bool {
	if strings.EqualFold(doc.City, req.City) {
		return true
	}
	return containsFold(req.AdjacentCities, doc.City)
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"

	"bustiming.sgbus.dev/internal/models"
)

// BoundingBox defines the corners of a lat/lon box
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks whether the given latitude and longitude are within the bounding box
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Expand grows the box by margin degrees on every side.
func (b BoundingBox) Expand(margin float64) BoundingBox {
	return BoundingBox{
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
	}
}

// ComputeBoundingBox computes the bounding box of all stops with valid coordinates.
func ComputeBoundingBox(stops []models.BusStop) (BoundingBox, error) {
	if len(stops) == 0 {
		return BoundingBox{}, fmt.Errorf("no stops to compute bounding box")
	}

	box := BoundingBox{
		MinLat: math.MaxFloat64,
		MaxLat: -math.MaxFloat64,
		MinLon: math.MaxFloat64,
		MaxLon: -math.MaxFloat64,
	}
	found := false

	for _, stop := range stops {
		if !IsValidLatLon(stop.Latitude, stop.Longitude) {
			continue
		}
		found = true
		box.MinLat = math.Min(box.MinLat, stop.Latitude)
		box.MaxLat = math.Max(box.MaxLat, stop.Latitude)
		box.MinLon = math.Min(box.MinLon, stop.Longitude)
		box.MaxLon = math.Max(box.MaxLon, stop.Longitude)
	}

	if !found {
		return BoundingBox{}, fmt.Errorf("no valid latitude/longitude found in stops")
	}
	return box, nil
}

// IsValidLatLon returns true if the given latitude and longitude values
// fall within the valid geographic coordinate bounds.
//
// (0,0) is treated as invalid: directory rows with missing coordinates
// decode to zero values.
func IsValidLatLon(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

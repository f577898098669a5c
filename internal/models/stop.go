package models

import "strings"

// BusStop is one entry of the stop directory.
type BusStop struct {
	BusStopCode string  `json:"BusStopCode" validate:"required"`
	RoadName    string  `json:"RoadName"`
	Description string  `json:"Description"`
	Latitude    float64 `json:"Latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"Longitude" validate:"gte=-180,lte=180"`
}

// Matches reports whether the lower-cased query is a substring of the code,
// description or road name.
func (s BusStop) Matches(lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s.BusStopCode), lowerQuery) ||
		strings.Contains(strings.ToLower(s.Description), lowerQuery) ||
		strings.Contains(strings.ToLower(s.RoadName), lowerQuery)
}

// BusStopsPage mirrors one page of the upstream BusStops endpoint.
type BusStopsPage struct {
	Metadata string    `json:"odata.metadata,omitempty"`
	Value    []BusStop `json:"value" validate:"dive"`
}

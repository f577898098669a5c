package models

import "time"

// NextBus is one arrival prediction slot as returned by the BusArrival endpoint.
// Every field is optional; an empty EstimatedArrival means the slot carries no prediction.
type NextBus struct {
	OriginCode       string `json:"OriginCode,omitempty"`
	DestinationCode  string `json:"DestinationCode,omitempty"`
	EstimatedArrival string `json:"EstimatedArrival" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Monitored        int    `json:"Monitored,omitempty"`
	Latitude         string `json:"Latitude,omitempty"`
	Longitude        string `json:"Longitude,omitempty"`
	VisitNumber      string `json:"VisitNumber,omitempty"`
	Load             string `json:"Load,omitempty"`
	Feature          string `json:"Feature,omitempty"`
	Type             string `json:"Type,omitempty"`
}

// HasPrediction reports whether the slot is present and carries an ETA.
func (nb *NextBus) HasPrediction() bool {
	return nb != nil && nb.EstimatedArrival != ""
}

// ETA parses EstimatedArrival. The second return value is false when the slot
// is absent or the timestamp cannot be parsed.
func (nb *NextBus) ETA() (time.Time, bool) {
	if !nb.HasPrediction() {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, nb.EstimatedArrival)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Service is the per-route block of an arrival response.
type Service struct {
	ServiceNo string   `json:"ServiceNo" validate:"required"`
	Operator  string   `json:"Operator,omitempty"`
	NextBus   *NextBus `json:"NextBus,omitempty"`
	NextBus2  *NextBus `json:"NextBus2,omitempty"`
	NextBus3  *NextBus `json:"NextBus3,omitempty"`
}

// Slots returns the three prediction slots in order. Absent slots are nil.
func (s Service) Slots() [3]*NextBus {
	return [3]*NextBus{s.NextBus, s.NextBus2, s.NextBus3}
}

// Predictions returns only the slots that carry an ETA, in order.
func (s Service) Predictions() []NextBus {
	var out []NextBus
	for _, slot := range s.Slots() {
		if slot.HasPrediction() {
			out = append(out, *slot)
		}
	}
	return out
}

// BusArrivalResponse mirrors the upstream BusArrival payload.
type BusArrivalResponse struct {
	Metadata    string    `json:"odata.metadata,omitempty"`
	BusStopCode string    `json:"BusStopCode"`
	Services    []Service `json:"Services" validate:"required,dive"`
}

// FindService returns the service with the given number, if present.
func (r *BusArrivalResponse) FindService(serviceNo string) (Service, bool) {
	for _, s := range r.Services {
		if s.ServiceNo == serviceNo {
			return s, true
		}
	}
	return Service{}, false
}

// ArrivalsResult is what the transit client hands to callers: the decoded
// response plus a flag telling whether it is synthesized demo data.
type ArrivalsResult struct {
	BusArrivalResponse
	Demo bool `json:"_isDemo,omitempty"`
}

// ErrorBody is the JSON shape of every error the proxy writes itself.
type ErrorBody struct {
	Error string `json:"error"`
}

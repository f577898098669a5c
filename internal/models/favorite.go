package models

import "bustiming.sgbus.dev/internal/utils"

// Favorite is a saved (stop, service) pair.
type Favorite struct {
	StopCode  string            `json:"stopCode"`
	ServiceNo string            `json:"serviceNo"`
	Timestamp utils.EpochMillis `json:"timestamp"`
}

// Key is the identifier used for the favorites timing map.
func (f Favorite) Key() string {
	return FavoriteKey(f.StopCode, f.ServiceNo)
}

func FavoriteKey(stopCode, serviceNo string) string {
	return stopCode + "_" + serviceNo
}

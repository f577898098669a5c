package transit

import (
	"fmt"
	"math"
	"time"
)

// MinutesUntil renders the time left before estimatedArrival: "Arr" when the
// bus is due, "1 min", or "<N> min". ok is false when there is no usable ETA.
func MinutesUntil(estimatedArrival string, now time.Time) (string, bool) {
	if estimatedArrival == "" {
		return "", false
	}
	eta, err := time.Parse(time.RFC3339, estimatedArrival)
	if err != nil {
		return "", false
	}

	mins := int(math.Floor(float64(eta.Sub(now).Milliseconds()) / 60000))
	switch {
	case mins <= 0:
		return "Arr", true
	case mins == 1:
		return "1 min", true
	default:
		return fmt.Sprintf("%d min", mins), true
	}
}

// FormatClockTime renders estimatedArrival as a 12-hour clock time in loc,
// or "--:--" when absent.
func FormatClockTime(estimatedArrival string, loc *time.Location) string {
	if estimatedArrival == "" {
		return "--:--"
	}
	eta, err := time.Parse(time.RFC3339, estimatedArrival)
	if err != nil {
		return "--:--"
	}
	if loc == nil {
		loc = time.Local
	}
	return eta.In(loc).Format("3:04 PM")
}

// Crowd is the display classification of a Load code.
type Crowd struct {
	Class string
	Label string
}

func CrowdInfo(load string) Crowd {
	switch load {
	case "SEA":
		return Crowd{Class: "crowd-green", Label: "Seats"}
	case "SDA":
		return Crowd{Class: "crowd-yellow", Label: "Standing"}
	case "LSD":
		return Crowd{Class: "crowd-red", Label: "Full"}
	default:
		return Crowd{Class: "crowd-gray", Label: "N/A"}
	}
}

// VehicleType names a Type code. Unknown codes are echoed back.
func VehicleType(code string) string {
	switch code {
	case "SD":
		return "Single Deck"
	case "DD":
		return "Double Deck"
	case "BD":
		return "Bendy"
	case "":
		return "Unknown"
	default:
		return code
	}
}

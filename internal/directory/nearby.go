package directory

import (
	"math"

	"bustiming.sgbus.dev/internal/models"
)

const (
	DefaultNearbyLimit = 10
	// metersPerDegree approximates one degree of arc near the equator.
	metersPerDegree = 111000
)

// NearbyStop is a directory entry annotated with its distance from a query point.
type NearbyStop struct {
	models.BusStop
	DistSq   float64
	Distance int // meters
}

// NearestStops returns the limit stops with the smallest planar squared
// distance to (lat, lon), nearest first. Stops at equal distance keep their
// directory order. It keeps a sorted window of at most limit entries, so the
// whole directory is never sorted.
func NearestStops(stops []models.BusStop, lat, lon float64, limit int) []NearbyStop {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	limit = min(limit, len(stops))
	if limit == 0 {
		return nil
	}

	best := make([]NearbyStop, 0, limit)
	for _, s := range stops {
		dLat := s.Latitude - lat
		dLon := s.Longitude - lon
		distSq := dLat*dLat + dLon*dLon

		if len(best) == limit && distSq >= best[len(best)-1].DistSq {
			continue
		}

		i := len(best)
		for i > 0 && best[i-1].DistSq > distSq {
			i--
		}
		if len(best) < limit {
			best = append(best, NearbyStop{})
		}
		copy(best[i+1:], best[i:len(best)-1])
		best[i] = NearbyStop{BusStop: s, DistSq: distSq}
	}

	for i := range best {
		best[i].Distance = int(math.Round(math.Sqrt(best[i].DistSq) * metersPerDegree))
	}
	return best
}

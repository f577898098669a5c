package controller

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bustiming.sgbus.dev/internal/directory"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/transit"
)

var slotLabels = [3]string{"Next Bus", "2nd Bus", "3rd Bus"}

// StopInfo heads a result page.
type StopInfo struct {
	StopCode string
	Title    string
	Subtitle string
	Demo     bool
	Status   string
}

func newStopInfo(stopCode string, demo bool) StopInfo {
	if demo {
		return StopInfo{
			StopCode: stopCode,
			Title:    "DEMO MODE",
			Subtitle: fmt.Sprintf("Stop Code: %s (API not active yet)", stopCode),
			Demo:     true,
			Status:   "Demo Mode - API key not yet activated",
		}
	}
	return StopInfo{
		StopCode: stopCode,
		Title:    "Bus Stop",
		Subtitle: "Stop Code: " + stopCode,
	}
}

// ArrivalSlot is one rendered prediction.
type ArrivalSlot struct {
	Label    string
	Minutes  string
	Clock    string
	Arriving bool
	Crowd    transit.Crowd
	Vehicle  string
}

// ArrivalsView is the arrivals panel for one service. No slots means "No buses".
type ArrivalsView struct {
	StopCode  string
	ServiceNo string
	Slots     []ArrivalSlot
	Demo      bool
	UpdatedAt time.Time
}

func newArrivalsView(stopCode string, svc models.Service, demo bool, now time.Time, loc *time.Location) ArrivalsView {
	view := ArrivalsView{StopCode: stopCode, ServiceNo: svc.ServiceNo, Demo: demo, UpdatedAt: now}
	for i, slot := range svc.Slots() {
		if !slot.HasPrediction() {
			continue
		}
		mins, _ := transit.MinutesUntil(slot.EstimatedArrival, now)
		view.Slots = append(view.Slots, ArrivalSlot{
			Label:    slotLabels[i],
			Minutes:  mins,
			Clock:    transit.FormatClockTime(slot.EstimatedArrival, loc),
			Arriving: mins == "Arr",
			Crowd:    transit.CrowdInfo(slot.Load),
			Vehicle:  transit.VehicleType(slot.Type),
		})
	}
	return view
}

// FavoriteView is one favorite card: up to three upcoming timings, with the
// " min" suffix dropped, and the crowd class of the next bus.
type FavoriteView struct {
	StopCode   string
	ServiceNo  string
	Timings    []string
	CrowdClass string
}

func newFavoriteViews(favs []models.Favorite, timings map[string][]models.NextBus, now time.Time) []FavoriteView {
	views := make([]FavoriteView, 0, len(favs))
	for _, f := range favs {
		v := FavoriteView{StopCode: f.StopCode, ServiceNo: f.ServiceNo}
		buses := timings[f.Key()]
		for i, b := range buses {
			if i == 3 {
				break
			}
			mins, ok := transit.MinutesUntil(b.EstimatedArrival, now)
			if !ok {
				continue
			}
			v.Timings = append(v.Timings, strings.TrimSuffix(mins, " min"))
		}
		if len(buses) > 0 && buses[0].Load != "" {
			v.CrowdClass = transit.CrowdInfo(buses[0].Load).Class
		}
		views = append(views, v)
	}
	return views
}

// Suggestion is a stop offered by text or nearby search. Distance is zero
// for text matches.
type Suggestion struct {
	StopCode    string
	Description string
	RoadName    string
	Distance    int
}

// DistanceLabel renders Distance as "350m" or "1.2km", or "" when unset.
func (s Suggestion) DistanceLabel() string {
	return FormatDistance(s.Distance)
}

func FormatDistance(meters int) string {
	switch {
	case meters <= 0:
		return ""
	case meters < 1000:
		return fmt.Sprintf("%dm", meters)
	default:
		return fmt.Sprintf("%.1fkm", float64(meters)/1000)
	}
}

func stopSuggestions(stops []models.BusStop) []Suggestion {
	out := make([]Suggestion, 0, len(stops))
	for _, s := range stops {
		out = append(out, Suggestion{StopCode: s.BusStopCode, Description: s.Description, RoadName: s.RoadName})
	}
	return out
}

func nearbySuggestions(stops []directory.NearbyStop) []Suggestion {
	out := make([]Suggestion, 0, len(stops))
	for _, s := range stops {
		out = append(out, Suggestion{
			StopCode:    s.BusStopCode,
			Description: s.Description,
			RoadName:    s.RoadName,
			Distance:    s.Distance,
		})
	}
	return out
}

// SortServices orders services by the numeric prefix of their number, then
// lexicographically, so "961M" follows "961". Numbers without a numeric
// prefix sort after all numbered ones.
func SortServices(services []models.Service) {
	sort.SliceStable(services, func(i, j int) bool {
		return serviceLess(services[i].ServiceNo, services[j].ServiceNo)
	})
}

func serviceLess(a, b string) bool {
	na, okA := numericPrefix(a)
	nb, okB := numericPrefix(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	}
	return a < b
}

func numericPrefix(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

const maxRecent = 5

// PushRecent moves code to the front of recent, dropping duplicates and
// anything past the fifth entry.
func PushRecent(recent []string, code string) []string {
	out := make([]string, 0, maxRecent)
	out = append(out, code)
	for _, c := range recent {
		if c == code {
			continue
		}
		if len(out) == maxRecent {
			break
		}
		out = append(out, c)
	}
	return out
}

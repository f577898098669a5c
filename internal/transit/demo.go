package transit

import (
	"time"

	"bustiming.sgbus.dev/internal/models"
)

var singaporeTime = time.FixedZone("SGT", 8*60*60)

type demoSlot struct {
	offset time.Duration
	load   string
	kind   string
}

var demoServices = []struct {
	serviceNo string
	operator  string
	slots     []demoSlot
}{
	{"176", "SMRT", []demoSlot{{2 * time.Minute, "SEA", "DD"}, {10 * time.Minute, "SDA", "DD"}, {20 * time.Minute, "SEA", "SD"}}},
	{"30", "SBST", []demoSlot{{5 * time.Minute, "SEA", "DD"}, {15 * time.Minute, "LSD", "SD"}, {24 * time.Minute, "SEA", "DD"}}},
	{"78", "TTS", []demoSlot{{8 * time.Minute, "SDA", "DD"}, {20 * time.Minute, "SEA", "DD"}}},
}

// DemoArrivals synthesizes the fixed three-service response used when live
// data is unavailable. Offsets grow with the service index: the first slot is
// 2+3i minutes out, the second 10+5i, the third 20+4i.
func DemoArrivals(stopCode string, now time.Time) *models.ArrivalsResult {
	services := make([]models.Service, 0, len(demoServices))
	for _, d := range demoServices {
		svc := models.Service{ServiceNo: d.serviceNo, Operator: d.operator}
		slots := make([]*models.NextBus, 3)
		for i, s := range d.slots {
			slots[i] = &models.NextBus{
				EstimatedArrival: now.Add(s.offset).In(singaporeTime).Format(time.RFC3339Nano),
				Monitored:        1,
				Load:             s.load,
				Feature:          "WAB",
				Type:             s.kind,
			}
		}
		svc.NextBus, svc.NextBus2, svc.NextBus3 = slots[0], slots[1], slots[2]
		services = append(services, svc)
	}

	return &models.ArrivalsResult{
		BusArrivalResponse: models.BusArrivalResponse{
			BusStopCode: stopCode,
			Services:    services,
		},
		Demo: true,
	}
}

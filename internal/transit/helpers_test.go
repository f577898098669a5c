package transit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bustiming.sgbus.dev/internal/config"
)

const arrivalFixture = `{
	"odata.metadata": "https://datamall2.mytransport.sg/ltaodataservice/v3/BusArrival",
	"BusStopCode": "83139",
	"Services": [
		{
			"ServiceNo": "15",
			"Operator": "GAS",
			"NextBus": {
				"OriginCode": "77009",
				"DestinationCode": "77009",
				"EstimatedArrival": "2024-05-01T08:05:30+08:00",
				"Monitored": 1,
				"Latitude": "1.3154918333333334",
				"Longitude": "103.9059125",
				"VisitNumber": "1",
				"Load": "SEA",
				"Feature": "WAB",
				"Type": "SD"
			},
			"NextBus2": {
				"OriginCode": "77009",
				"DestinationCode": "77009",
				"EstimatedArrival": "2024-05-01T08:14:02+08:00",
				"Monitored": 0,
				"Latitude": "0.0",
				"Longitude": "0.0",
				"VisitNumber": "1",
				"Load": "SDA",
				"Feature": "WAB",
				"Type": "DD"
			},
			"NextBus3": {
				"OriginCode": "",
				"DestinationCode": "",
				"EstimatedArrival": "",
				"Monitored": 0,
				"Latitude": "",
				"Longitude": "",
				"VisitNumber": "",
				"Load": "",
				"Feature": "",
				"Type": ""
			}
		}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(func() { ts.Close() })
	return ts
}

func respondJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		// #nosec G104
		w.Write([]byte(body))
	}
}

func newTestClient(baseURL string, policy config.FallbackPolicy) *Client {
	c := NewClient(baseURL, &http.Client{Timeout: 5 * time.Second}, NewSession(""), policy, testLogger())
	c.Now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return c
}

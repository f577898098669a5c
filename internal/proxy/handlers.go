package proxy

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bustiming.sgbus.dev/internal/metrics"
	"bustiming.sgbus.dev/internal/models"
)

const (
	routeBusArrival = "bus_arrival"
	routeBusStops   = "bus_stops"

	msgMissingCredential = "Server misconfiguration: LTA_API_KEY not found in environment"
	msgMissingStopCode   = "BusStopCode parameter required"
	msgInvalidSkip       = "skip parameter must be a non-negative integer"
)

// HealthStatus is the body of /v1/healthcheck. The proxy is ready when it
// has a server-side API key.
type HealthStatus struct {
	Status               string `json:"status"`
	Environment          string `json:"environment"`
	Version              string `json:"version"`
	CredentialConfigured bool   `json:"credential_configured"`
	Ready                bool   `json:"ready"`
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	cfg := app.ConfigService.Config
	configured := cfg.GetCredential() != ""
	if configured {
		metrics.CredentialConfigured.Set(1)
	} else {
		metrics.CredentialConfigured.Set(0)
	}

	status := HealthStatus{
		Status:               "available",
		Environment:          cfg.Env,
		Version:              app.Version,
		CredentialConfigured: configured,
		Ready:                configured,
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, status)
}

// busArrivalHandler relays GET /v3/BusArrival. The credential check comes
// first, so an unconfigured proxy answers 500 even without a stop code.
func (app *Application) busArrivalHandler(w http.ResponseWriter, r *http.Request) {
	key := app.credential(r)
	if key == "" {
		app.errorResponse(w, routeBusArrival, http.StatusInternalServerError, msgMissingCredential)
		return
	}

	q := r.URL.Query()
	stopCode := q.Get("BusStopCode")
	if stopCode == "" {
		app.errorResponse(w, routeBusArrival, http.StatusBadRequest, msgMissingStopCode)
		return
	}

	app.relay(w, r, routeBusArrival, app.arrivalURL(stopCode, q.Get("ServiceNo")), key)
}

// busStopsHandler relays one page of GET /BusStops.
func (app *Application) busStopsHandler(w http.ResponseWriter, r *http.Request) {
	key := app.credential(r)
	if key == "" {
		app.errorResponse(w, routeBusStops, http.StatusInternalServerError, msgMissingCredential)
		return
	}

	skip := 0
	if raw := r.URL.Query().Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			app.errorResponse(w, routeBusStops, http.StatusBadRequest, msgInvalidSkip)
			return
		}
		skip = n
	}

	app.relay(w, r, routeBusStops, app.stopsURL(skip), key)
}

// credential returns the key for an upstream call: the caller's AccountKey
// header when present, else the server key.
func (app *Application) credential(r *http.Request) string {
	if key := r.Header.Get("AccountKey"); key != "" {
		return key
	}
	return app.ConfigService.Config.GetCredential()
}

func (app *Application) errorResponse(w http.ResponseWriter, route string, status int, message string) {
	metrics.ProxyRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	writeJSON(w, status, models.ErrorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

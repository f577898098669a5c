package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"

	"bustiming.sgbus.dev/internal/metrics"
	"bustiming.sgbus.dev/internal/report"
	"bustiming.sgbus.dev/internal/utils"
)

const userAgent = "SG-Bus-Timing-App/1.0"

// maxRelayBytes bounds an upstream body held in memory. Larger bodies are
// answered with 502 rather than relayed cut short.
var maxRelayBytes int64 = 8 << 20

func (app *Application) upstreamBase() string {
	return strings.TrimRight(app.ConfigService.Config.UpstreamURL, "/")
}

func (app *Application) arrivalURL(stopCode, serviceNo string) string {
	q := url.Values{}
	q.Set("BusStopCode", stopCode)
	if serviceNo != "" {
		q.Set("ServiceNo", serviceNo)
	}
	return app.upstreamBase() + "/v3/BusArrival?" + q.Encode()
}

// stopsURL keeps the literal "$skip" parameter name DataMall expects.
func (app *Application) stopsURL(skip int) string {
	return fmt.Sprintf("%s/BusStops?$skip=%d", app.upstreamBase(), skip)
}

// relay performs the upstream GET and copies its status code and body to w
// unchanged. Transport failures become a 500 with the error message.
func (app *Application) relay(w http.ResponseWriter, r *http.Request, route, target, key string) {
	logger := app.Logger.With("route", route, "key", utils.MaskKey(key))
	if utils.LooksLikeHexKey(key) {
		logger.Warn("API key is 32 hex characters; DataMall keys are usually 36-character UUIDs")
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		app.errorResponse(w, route, http.StatusInternalServerError, err.Error())
		return
	}
	req.Header.Set("AccountKey", key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	logger.Debug("forwarding request upstream", "path", req.URL.Path)

	resp, err := app.Client.Do(req)
	if err != nil {
		metrics.UpstreamStatus.WithLabelValues(route).Set(0)
		logger.Error("upstream request failed", "error", err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("endpoint", route),
			Level: sentry.LevelError,
		})
		app.errorResponse(w, route, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBytes+1))
	if err != nil {
		metrics.UpstreamStatus.WithLabelValues(route).Set(0)
		logger.Error("failed to read upstream response", "error", err)
		app.errorResponse(w, route, http.StatusInternalServerError, err.Error())
		return
	}
	if int64(len(body)) > maxRelayBytes {
		metrics.UpstreamStatus.WithLabelValues(route).Set(0)
		logger.Error("upstream response too large", "limit", maxRelayBytes, "status", resp.StatusCode)
		app.errorResponse(w, route, http.StatusBadGateway,
			fmt.Sprintf("Upstream response exceeds %d bytes", maxRelayBytes))
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		metrics.UpstreamStatus.WithLabelValues(route).Set(1)
	} else {
		metrics.UpstreamStatus.WithLabelValues(route).Set(0)
		logger.Warn("upstream returned non-success status", "status", resp.StatusCode)
	}
	metrics.ProxyRequests.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

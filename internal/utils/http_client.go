package utils

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"bustiming.sgbus.dev/internal/metrics"
)

// latencyTrackingRoundTripper records the duration of every outgoing request
// under metrics.OutgoingLatency, labeled by URL (without query), method and status.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	// Query strings carry stop codes and would explode label cardinality.
	safeURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	metrics.OutgoingLatency.WithLabelValues(safeURL, req.Method, status).Observe(duration)

	return resp, err
}

// InstrumentTransport wraps next (http.DefaultTransport when nil) with latency tracking.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &latencyTrackingRoundTripper{next: next}
}

// NewPooledClient returns the HTTP client used for every upstream and proxy call.
//
// Connections are kept alive across the 30 second refresh cycle, dials and TLS
// handshakes fail fast, and the whole request is capped at 10 seconds so a
// stalled upstream can never hang a caller.
func NewPooledClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &http.Client{
		Transport: InstrumentTransport(transport),
		Timeout:   10 * time.Second,
	}
}

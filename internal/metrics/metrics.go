package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutgoingLatency observes every HTTP call made through the pooled client.
	OutgoingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bustiming_outgoing_request_duration_seconds",
			Help:    "Latency of outgoing HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"url", "method", "status"},
	)
)

var (
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bustiming_proxy_requests_total",
		Help: "Requests answered by the proxy, by route and status code",
	}, []string{"route", "status"})

	// UpstreamStatus is 1 when the last upstream call for an endpoint returned 2xx.
	UpstreamStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bustiming_upstream_status",
		Help: "Status of the upstream transit API (0 = not working, 1 = working)",
	}, []string{"endpoint"})

	CredentialConfigured = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bustiming_credential_configured",
		Help: "1 if the proxy has a server-side API key",
	})
)

var (
	DemoFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bustiming_demo_fallbacks_total",
		Help: "Arrival lookups answered with demo data, by failure reason",
	}, []string{"reason"})

	ArrivalFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bustiming_arrival_fetches_total",
		Help: "Arrival lookups made by the client, by result",
	}, []string{"result"})
)

var (
	DirectoryStops = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bustiming_directory_stops",
		Help: "Number of stops held by the stop directory",
	})

	DirectoryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bustiming_directory_refreshes_total",
		Help: "Stop directory refresh attempts, by result",
	}, []string{"result"})
)

var (
	FavoritesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bustiming_favorites_tracked",
		Help: "Number of favorites whose timings are refreshed",
	})

	OfflineCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bustiming_offline_cache_lookups_total",
		Help: "Offline asset cache lookups, by cache name and result (hit, miss, bypass)",
	}, []string{"cache", "result"})
)

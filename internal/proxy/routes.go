package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"bustiming.sgbus.dev/internal/middleware"
)

// Routes builds the proxy handler.
//
//   - GET /api/bus-arrival: arrivals for one stop, relayed from upstream
//   - GET /api/bus-stops: one page of the stop directory, relayed from upstream
//   - GET /v1/healthcheck: JSON health snapshot
//   - GET /metrics: cached Prometheus exposition
//   - OPTIONS on any path: empty 200 preflight
//   - anything else: static assets, served cache-first by the offline worker
//
// Every response carries the CORS and security headers, is logged, and
// panics are reported to Sentry.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/api/bus-arrival", app.busArrivalHandler)
	router.HandlerFunc(http.MethodGet, "/api/bus-stops", app.busStopsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	router.NotFound = app.Worker.Handler(app.Static)

	handler := preflight(router)
	handler = middleware.SentryMiddleware(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.CORS(handler)
	return middleware.RequestLogger(app.Logger)(handler)
}

// preflight answers every OPTIONS request before routing.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

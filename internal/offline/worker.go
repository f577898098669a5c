package offline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"bustiming.sgbus.dev/internal/metrics"
)

const DefaultCacheName = "sg-bus-v2"

// DefaultAssets is the application shell cached on install.
var DefaultAssets = []string{
	"/",
	"/index.html",
	"/style.css",
	"/app.js",
	"/api.js",
	"/icon.png",
	"/manifest.json",
}

// Worker caches the static application shell and serves it cache-first.
// Anything whose URL contains "/api/" always goes to the network.
type Worker struct {
	CacheName string
	Assets    []string

	storage *CacheStorage
	network http.Handler
	logger  *slog.Logger

	installed atomic.Bool
	claimed   atomic.Bool
}

// NewWorker returns a worker that fills its cache from network, usually the
// static file handler.
func NewWorker(storage *CacheStorage, network http.Handler, logger *slog.Logger) *Worker {
	return &Worker{
		CacheName: DefaultCacheName,
		Assets:    append([]string(nil), DefaultAssets...),
		storage:   storage,
		network:   network,
		logger:    logger,
	}
}

// RequestKey identifies a request inside a cache.
func RequestKey(method string, path, rawQuery string) string {
	if path == "" {
		path = "/"
	}
	if rawQuery != "" {
		path += "?" + rawQuery
	}
	return method + " " + path
}

func bypass(url string) bool {
	return strings.Contains(url, "/api/")
}

// Install fetches every asset and stores them in the named cache. Any asset
// that fails leaves the cache untouched and fails the install.
func (w *Worker) Install(ctx context.Context) error {
	fetched := make(map[string]*CachedResponse, len(w.Assets))
	for _, asset := range w.Assets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			return fmt.Errorf("install %s: %w", asset, err)
		}

		rec := newCaptureWriter()
		w.network.ServeHTTP(rec, req)
		if rec.status != http.StatusOK {
			return fmt.Errorf("install %s: network returned %d", asset, rec.status)
		}
		fetched[RequestKey(http.MethodGet, req.URL.Path, req.URL.RawQuery)] = rec.response()
	}

	cache := w.storage.Open(w.CacheName)
	for key, resp := range fetched {
		if err := cache.Put(key, resp); err != nil {
			return fmt.Errorf("install %s: %w", key, err)
		}
	}
	w.installed.Store(true)
	w.logger.Info("offline cache installed", "cache", w.CacheName, "assets", len(fetched))
	return nil
}

// Activate deletes every cache but the current one and starts serving from
// the cache. It returns the names of the deleted caches.
func (w *Worker) Activate() []string {
	var deleted []string
	for _, name := range w.storage.Keys() {
		if name != w.CacheName && w.storage.Delete(name) {
			deleted = append(deleted, name)
		}
	}
	w.claimed.Store(true)
	if len(deleted) > 0 {
		w.logger.Info("removed old offline caches", "caches", deleted)
	}
	return deleted
}

func (w *Worker) Installed() bool { return w.installed.Load() }
func (w *Worker) Claimed() bool   { return w.claimed.Load() }

func (w *Worker) lookup(method, url, path, rawQuery string) (*CachedResponse, string) {
	if bypass(url) {
		return nil, "bypass"
	}
	if !w.claimed.Load() || method != http.MethodGet {
		return nil, "miss"
	}
	if resp, ok := w.storage.Match(RequestKey(method, path, rawQuery)); ok {
		return resp, "hit"
	}
	return nil, "miss"
}

// Handler serves cached assets and passes everything else to next.
func (w *Worker) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		resp, result := w.lookup(r.Method, r.URL.String(), r.URL.Path, r.URL.RawQuery)
		metrics.OfflineCacheLookups.WithLabelValues(w.CacheName, result).Inc()
		if resp == nil {
			next.ServeHTTP(rw, r)
			return
		}

		for k, v := range resp.Header {
			rw.Header()[k] = append([]string(nil), v...)
		}
		rw.WriteHeader(resp.Status)
		_, _ = rw.Write(resp.Body)
	})
}

// captureWriter is a minimal http.ResponseWriter that keeps the status,
// headers and body of a response in memory.
type captureWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
	wrote  bool
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: http.Header{}, status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) {
	if c.wrote {
		return
	}
	c.status = status
	c.wrote = true
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wrote {
		c.WriteHeader(http.StatusOK)
	}
	return c.buf.Write(b)
}

func (c *captureWriter) response() *CachedResponse {
	return &CachedResponse{
		Status: c.status,
		Header: c.header.Clone(),
		Body:   bytes.Clone(c.buf.Bytes()),
	}
}

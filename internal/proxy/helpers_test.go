package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"bustiming.sgbus.dev/internal/config"
)

const testKey = "0123abcd-4567-89ef-0123-456789abcdef"

// upstreamRecorder is a fake DataMall that remembers the last request it saw.
type upstreamRecorder struct {
	mu     sync.Mutex
	last   *http.Request
	status int
	body   string
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.last = r.Clone(context.Background())
	status, body := u.status, u.body
	u.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (u *upstreamRecorder) lastRequest() *http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html":    "<html>bus</html>",
		"style.css":     "body{}",
		"app.js":        "console.log('app')",
		"api.js":        "console.log('api')",
		"icon.png":      "\x89PNG",
		"manifest.json": `{"name":"SG Bus"}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// newTestApplication returns an application pointed at a fake upstream. An
// empty key leaves the proxy without a server credential.
func newTestApplication(t *testing.T, key string) (*Application, *upstreamRecorder) {
	t.Helper()

	upstream := &upstreamRecorder{}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Env = "testing"
	cfg.UpstreamURL = srv.URL
	cfg.StaticDir = writeAssets(t)
	cfg.SetCredential(key, config.SourceConfig)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, srv.Client(), "test-version"), upstream
}

func serve(t *testing.T, app *Application, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rr := httptest.NewRecorder()
	app.Routes(ctx).ServeHTTP(rr, req)
	return rr
}

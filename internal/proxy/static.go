package proxy

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const notFoundBody = "<h1>404 - File Not Found</h1>"

var contentTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".ico":  "image/x-icon",
}

// ContentType maps a file name to the type served for it; unknown extensions
// are text/plain.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "text/plain"
}

// StaticHandler serves the application's files from Root.
type StaticHandler struct {
	Root   string
	logger *slog.Logger
}

func NewStaticHandler(root string, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{Root: root, logger: logger}
}

func (s *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resolve(r.URL.Path)
	if !ok {
		s.notFound(w)
		return
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.notFound(w)
			return
		}
		s.logger.Error("failed to read static file", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Server Error: " + err.Error()))
		return
	}

	w.Header().Set("Content-Type", ContentType(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// resolve maps a URL path onto a file below Root. Paths that try to climb
// out of Root are rejected.
func (s *StaticHandler) resolve(urlPath string) (string, bool) {
	if strings.Contains(urlPath, "..") || strings.ContainsRune(urlPath, 0) {
		return "", false
	}
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/index.html"
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", false
	}
	name := filepath.Join(root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return name, true
}

func (s *StaticHandler) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundBody))
}

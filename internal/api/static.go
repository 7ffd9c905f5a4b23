package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// mimeTypes is the fixed extension table the static handler consults;
// anything else falls back to application/octet-stream.
var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// StaticHandler serves files out of a fixed public directory, rejecting
// any request whose resolved path escapes it.
type StaticHandler struct {
	root string
}

// NewStaticHandler builds a StaticHandler rooted at dir.
func NewStaticHandler(dir string) *StaticHandler {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &StaticHandler{root: abs}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path
	if reqPath == "/" {
		reqPath = "/index.html"
	}

	cleaned := filepath.Clean(reqPath)
	full := filepath.Join(h.root, cleaned)

	rel, err := filepath.Rel(h.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	ext := strings.ToLower(filepath.Ext(full))
	contentType, ok := mimeTypes[ext]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, full)
}

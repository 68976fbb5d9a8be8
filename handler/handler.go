// Package handler provides the HTTP handlers for the review server.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/stevemurr/simple-review-server/store"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store     store.Store
	log       *zap.SugaredLogger
	publicDir string
	mux       *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithPublicDir serves files from dir for any GET that matches no route.
func WithPublicDir(dir string) Option {
	return func(h *Handler) {
		h.publicDir = dir
	}
}

// New creates a Handler and wires up all routes.
func New(s store.Store, logger *zap.SugaredLogger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	h := &Handler{store: s, log: logger, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	for _, res := range []resource{businesses, reviews, photos} {
		base := "/" + res.name
		h.mux.HandleFunc("GET "+base, h.list(res))
		h.mux.HandleFunc("GET "+base+"/{$}", h.list(res))
		h.mux.HandleFunc("GET "+base+"/{id}", h.get(res))
		h.mux.HandleFunc("PUT "+base+"/{id}", h.replace(res))
		h.mux.HandleFunc("PATCH "+base+"/{id}", h.merge(res))
		h.mux.HandleFunc("DELETE "+base+"/{id}", h.remove(res))
	}

	h.mux.HandleFunc("POST /businesses", h.createBusiness)
	h.mux.HandleFunc("POST /businesses/{$}", h.createBusiness)
	h.mux.HandleFunc("POST /businesses/{id}/reviews", h.createReview)
	h.mux.HandleFunc("POST /businesses/{id}/reviews/{$}", h.createReview)
	h.mux.HandleFunc("POST /businesses/{id}/photos", h.createPhoto)
	h.mux.HandleFunc("POST /businesses/{id}/photos/{$}", h.createPhoto)

	h.mux.HandleFunc("/", h.fallback)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"err": msg})
}

// readDoc decodes the request body as a single JSON object. A missing,
// malformed or non-object body, or one with trailing data, yields nil, which
// fails validation downstream.
func readDoc(r *http.Request) map[string]any {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil
	}
	return doc
}

// pathID parses the {id} path value. ok is false for anything that is not
// a non-negative integer.
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// notFound writes the catch-all 404 body.
func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "Requested resource " + r.URL.RequestURI() + " does not exist",
	})
}

// storeError maps store failures to a response. It returns false when err
// is nil.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		h.notFound(w, r)
	default:
		h.log.Errorw("store operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
	return true
}

// ---------- status endpoints ----------

// root serves public/index.html when present, the welcome message otherwise.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if h.serveStatic(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, "Welcome to my yelp-like server")
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// fallback serves static files from the public directory, if configured,
// and the 404 body otherwise.
func (h *Handler) fallback(w http.ResponseWriter, r *http.Request) {
	if h.serveStatic(w, r) {
		return
	}
	h.notFound(w, r)
}

// serveStatic writes the file under publicDir named by the request path and
// reports whether it did. A directory is served through its index.html.
// ServeContent is used so that no redirect is issued for index.html paths.
func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	if h.publicDir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return false
	}
	name := filepath.Join(h.publicDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	fi, err := os.Stat(name)
	if err != nil {
		return false
	}
	if fi.IsDir() {
		name = filepath.Join(name, "index.html")
		if fi, err = os.Stat(name); err != nil || fi.IsDir() {
			return false
		}
	}
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
	return true
}

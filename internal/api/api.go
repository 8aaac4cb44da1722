// Package api provides the REST endpoints around the track store: liveness,
// decoded-batch upload and dataset metadata.
package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"asterix_server/internal/track"
)

// maxUploadBytes caps a decoded batch upload (200MB).
const maxUploadBytes = 200 << 20

// Server provides HTTP access to the track store.
type Server struct {
	store *track.Store
	port  int
}

// Config holds configuration for the HTTP server.
type Config struct {
	Port int
}

// NewServer creates the HTTP server around a store.
func NewServer(store *track.Store, cfg Config) *Server {
	return &Server{store: store, port: cfg.Port}
}

// Run starts the HTTP server (blocking).
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("[http] listening at http://localhost%s", addr)
	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/metadata", s.handleMetadata)
	r.Post("/upload", s.handleUpload)
	return r
}

// corsMiddleware adds CORS headers; the server is only reachable locally but
// the frontend runs in a browser context.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.store.Size(),
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Metadata())
}

// handleUpload receives a batch of already-decoded target reports (a JSON
// array) and replaces the dataset with it. Returns the metadata summary so
// the frontend can update its UI state without a channel round-trip. A batch
// that fails validation is rejected whole; the previous dataset stays live.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Read error: "+err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Request body is empty.")
		return
	}

	records, err := track.DecodeBatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Decode error: "+err.Error())
		return
	}

	meta := s.store.LoadRecords(records)
	log.Printf("[http] loaded %s records", humanize.Comma(int64(meta.RecordCount)))
	writeJSON(w, http.StatusOK, meta)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

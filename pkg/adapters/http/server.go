// Package http serves stored traces over a small JSON API, the backend for
// the external trace viewer.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/tasktree/internal/logging"
	"github.com/aretw0/tasktree/pkg/ports"
	"github.com/aretw0/tasktree/pkg/trace"
)

// Uploaded trace documents above this size are rejected outright.
const maxTraceBytes = 32 << 20

// Server exposes a ports.TraceStore over HTTP.
type Server struct {
	store  ports.TraceStore
	logger *slog.Logger
}

type Option func(*Server)

// WithLogger routes request logs to l. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewHandler creates the HTTP handler serving the trace API:
//
//	GET  /healthz          liveness probe
//	GET  /api/traces       list stored trace ids
//	POST /api/traces       ingest a serialized trace, returns its id
//	GET  /api/traces/{id}  fetch one trace document
//
// Responses carry permissive CORS headers so a browser-based viewer served
// from another origin can fetch traces directly.
func NewHandler(store ports.TraceStore, opts ...Option) http.Handler {
	s := &Server{store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Route("/api/traces", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.ingest)
		r.Get("/{id}", s.get)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("trace listing failed", "error", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, map[string][]string{"traces": ids})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	root, err := s.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrTraceNotFound) {
			http.Error(w, "trace not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		s.logger.Error("trace load failed", "id", id, "error", err)
		return
	}
	s.writeJSON(w, root)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTraceBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		s.logger.Warn("trace ingest read failed", "error", err)
		return
	}
	root, err := trace.Decode(data)
	if err != nil {
		http.Error(w, "Invalid trace document", http.StatusBadRequest)
		s.logger.Warn("trace ingest rejected", "error", err)
		return
	}
	id, err := s.store.Save(r.Context(), root)
	if err != nil {
		http.Error(w, fmt.Sprintf("Save error: %v", err), http.StatusInternalServerError)
		s.logger.Error("trace save failed", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]string{"id": id}); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

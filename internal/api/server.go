// Package api exposes a bibliography document over HTTP. Requests are
// serialized so one server process acts as a single sequential writer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pbaille/bib/internal/codec"
	"github.com/pbaille/bib/internal/domain"
	"github.com/pbaille/bib/internal/payload"
	"github.com/pbaille/bib/internal/store"
)

const maxRequestBytes = 10 << 20

// Server handles HTTP requests for the bibliography API
type Server struct {
	store  *store.Store
	addr   string
	encode codec.Options
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a new API server
func New(s *store.Store, addr string, encode codec.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: s, addr: addr, encode: encode, logger: logger}
}

// Handler returns the routed handler, CORS included
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Entries
	mux.HandleFunc("GET /entries", s.listEntries)
	mux.HandleFunc("POST /entries", s.addEntries)
	mux.HandleFunc("POST /annotate", s.annotate)

	// Summary
	mux.HandleFunc("GET /summary", s.summary)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.addr, "path", s.store.Path())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	unannotated := false
	if v := r.URL.Query().Get("unannotated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unannotated must be a boolean")
			return
		}
		unannotated = b
	}

	s.mu.Lock()
	result, err := s.store.List(unannotated)
	s.mu.Unlock()
	if err != nil {
		s.fail(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []domain.Listing{}
	}
	writeJSON(w, http.StatusOK, result)
}

// addEntries accepts a payload body (JSON or YAML, one or many) and appends
// the encoded entries. Query parameters: topic, create.
func (s *Server) addEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	create := false
	if v := q.Get("create"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "create must be a boolean")
			return
		}
		create = b
	}

	payloads, err := payload.Read(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.fail(w, err)
		return
	}
	entries := make([]domain.Entry, 0, len(payloads))
	for _, p := range payloads {
		e, err := codec.Encode(p, domain.Overrides{}, s.encode)
		if err != nil {
			s.fail(w, err)
			return
		}
		entries = append(entries, e)
	}

	s.mu.Lock()
	result, err := s.store.Append(entries, store.AppendOptions{
		Topic:           strings.TrimSpace(q.Get("topic")),
		CreateIfMissing: create,
	})
	s.mu.Unlock()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// AnnotateRequest is the request body for annotating an entry
type AnnotateRequest struct {
	URL        string `json:"url"`
	Annotation string `json:"annotation"`
}

func (s *Server) annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	entry, err := s.store.Annotate(req.URL, req.Annotation)
	s.mu.Unlock()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	text, err := s.store.Summary()
	s.mu.Unlock()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

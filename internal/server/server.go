// Package server exposes the engine's state over a small JSON read API.
// This is the presentation boundary: it only reads engine snapshots and
// store history, plus a manual-refresh trigger per source.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/qgold/goldrates/internal/engine"
	"github.com/qgold/goldrates/internal/sources"
	"github.com/qgold/goldrates/internal/store"
)

type Server struct {
	engine *engine.Engine
	store  *store.Store
	http   *http.Server
}

func New(addr string, eng *engine.Engine, st *store.Store) *Server {
	s := &Server{engine: eng, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/prices", s.handlePrices)
		r.Get("/prices/{slug}", s.handlePrice)
		r.Post("/prices/{slug}/refresh", s.handleRefresh)
		r.Get("/history", s.handleHistory)
	})

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"initial_loading": s.engine.InitialLoading(),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sources.All)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"initial_loading": s.engine.InitialLoading(),
		"sources":         s.engine.Snapshot(),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := sources.BySlug(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	st, _ := s.engine.State(slug)
	writeJSON(w, http.StatusOK, st)
}

// handleRefresh re-runs the pipeline for one source immediately, outside any
// batch sweep. The response carries the resulting state either way; a failed
// refresh still answers 200 with the error and last-good metrics in place.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, ok := sources.BySlug(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	_ = s.engine.FetchOne(r.Context(), slug)
	st, _ := s.engine.State(slug)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	slug := r.URL.Query().Get("source")
	if slug == "" {
		slug = sources.DefaultSlug
	}
	if _, ok := sources.BySlug(slug); !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.store.LatestGramPrices(r.Context(), slug, limit)
	if err != nil {
		log.Error().Err(err).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": slug, "rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

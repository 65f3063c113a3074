// Package server exposes the evaluation API: on-demand arbitrage scans over
// the live snapshot set and parlay/teaser evaluation.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/vigorish/oddscore/internal/arbitrage"
	"github.com/vigorish/oddscore/internal/parlay"
	"github.com/vigorish/oddscore/internal/store"
	"github.com/vigorish/oddscore/pkg/models"
)

// Server holds handler dependencies.
type Server struct {
	store    *store.Store
	engine   *arbitrage.Engine
	analyzer *parlay.Analyzer
	logger   *logrus.Entry
}

// New creates the server.
func New(s *store.Store, e *arbitrage.Engine, a *parlay.Analyzer, logger *logrus.Entry) *Server {
	return &Server{store: s, engine: e, analyzer: a, logger: logger}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/arbitrage", s.handleArbitrage)
		r.Post("/parlay/evaluate", s.handleParlay)
		r.Post("/teaser/evaluate", s.handleTeaser)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "oddscore",
		"series":  s.store.Len(),
	})
}

// handleArbitrage scans the current snapshot set, optionally filtered to one
// event via ?event=.
func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event")

	var quotes []models.Quote
	for _, key := range s.store.Keys() {
		q := s.store.Latest(key)
		if q == nil {
			continue
		}
		if eventID != "" && q.EventID != eventID {
			continue
		}
		quotes = append(quotes, *q)
	}

	opportunities := s.engine.FindArbitrage(quotes)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":         len(opportunities),
		"opportunities": opportunities,
	})
}

type parlayRequest struct {
	Legs  []models.ParlayLeg `json:"legs"`
	Stake float64            `json:"stake"`
}

func (s *Server) handleParlay(w http.ResponseWriter, r *http.Request) {
	var req parlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	eval, err := s.analyzer.EvaluateParlay(req.Legs, req.Stake)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, eval)
}

type teaserRequest struct {
	Legs   []models.ParlayLeg `json:"legs"`
	Stake  float64            `json:"stake"`
	Points float64            `json:"points"`
}

func (s *Server) handleTeaser(w http.ResponseWriter, r *http.Request) {
	var req teaserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	eval, err := s.analyzer.EvaluateTeaser(req.Legs, req.Stake, req.Points)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, eval)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		// Headers are gone; nothing left to do but note it.
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/keywatch/keywatch/internal/analytics"
	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/engage"
	"github.com/keywatch/keywatch/internal/scanner"
)

// defaultUserID is used when a request carries no user. The API is
// multi-user at the storage layer but runs single-user today.
const defaultUserID = 1

// Server exposes the campaign API and the HTML report view.
type Server struct {
	db        *database.DB
	scanner   *scanner.Scanner
	engager   *engage.Engager
	analytics *analytics.Aggregator
	router    chi.Router
}

// New creates a Server and mounts its routes.
func New(db *database.DB, sc *scanner.Scanner, en *engage.Engager) *Server {
	s := &Server{
		db:        db,
		scanner:   sc,
		engager:   en,
		analytics: analytics.New(db),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCampaign)
				r.Delete("/", s.handleDeleteCampaign)
				r.Post("/activate", s.handleSetActive(true))
				r.Post("/deactivate", s.handleSetActive(false))
				r.Post("/scan", s.handleScan)
				r.Post("/engage", s.handleEngage)
				r.Post("/engagement/start", s.handleEngagementStart)
				r.Post("/engagement/stop", s.handleEngagementStop)
				r.Get("/stats", s.handleCampaignStats)
				r.Get("/matches", s.handleCampaignMatches)
			})
		})
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleConnectAccount)
		})
		r.Get("/stats", s.handleStats)
	})
	r.Get("/campaigns/{id}/report", s.handleReport)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the HTTP server on the given port.
func (s *Server) Serve(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("http server listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// campaignParam loads the {id} campaign or writes the error response
// and returns nil.
func (s *Server) campaignParam(w http.ResponseWriter, r *http.Request) *database.Campaign {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return nil
	}
	c, err := s.db.GetCampaign(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading campaign: %v", err)
		return nil
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "campaign %d not found", id)
		return nil
	}
	return c
}

// Package api exposes the HTTP inspection surface for crawl results.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ggstore/ggcrawl/internal/catalog"
)

// Server serves read-only views over the metadata store and status log. It
// never mutates crawl state; the crawl CLI owns writes.
type Server struct {
	router     chi.Router
	store      *catalog.Store
	statusPath string
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store *catalog.Store, statusPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, statusPath: statusPath, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/errors", s.getErrors)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	TotalProducts int                      `json:"total_products"`
	TotalImages   int                      `json:"total_images"`
	CrawledAt     *time.Time               `json:"crawled_at,omitempty"`
	Jobs          jobCounts                `json:"jobs"`
	LastSession   *catalog.SessionProgress `json:"last_session,omitempty"`
}

type jobCounts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	result, err := s.store.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load metadata failed")
		return
	}
	records, err := catalog.ReadStatusLog(s.statusPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read status log failed")
		return
	}

	result.Recount()
	resp := statusResponse{
		TotalProducts: result.TotalProducts,
		TotalImages:   result.TotalImages,
	}
	if !result.CrawledAt.IsZero() {
		crawledAt := result.CrawledAt
		resp.CrawledAt = &crawledAt
	}
	for _, rec := range records {
		switch rec.Outcome {
		case catalog.OutcomeSuccess:
			resp.Jobs.Success++
		case catalog.OutcomeFailed:
			resp.Jobs.Failed++
		case catalog.OutcomeSkipped:
			resp.Jobs.Skipped++
		}
	}

	sessions, err := catalog.ReadSessions(s.statusPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read status log failed")
		return
	}
	if len(sessions) > 0 {
		resp.LastSession = &sessions[len(sessions)-1]
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getErrors(w http.ResponseWriter, r *http.Request) {
	records, err := catalog.ReadStatusLog(s.statusPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read status log failed")
		return
	}
	failures := catalog.FilterErrors(records)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	total := len(failures)
	if len(failures) > limit {
		// Most recent failures are the interesting ones.
		failures = failures[len(failures)-limit:]
	}
	if failures == nil {
		failures = []catalog.JobRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"errors": failures,
		"total":  total,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

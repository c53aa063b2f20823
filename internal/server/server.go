// Package server exposes the enrichment pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/philippeb99/researcher-sub001/internal/auth"
	"github.com/philippeb99/researcher-sub001/internal/model"
	"github.com/philippeb99/researcher-sub001/internal/orchestrator"
	"github.com/philippeb99/researcher-sub001/internal/store"
	"github.com/philippeb99/researcher-sub001/internal/validate"
)

// Server routes enrichment requests to the orchestrator.
type Server struct {
	store     store.Store
	auth      *auth.Manager
	orch      *orchestrator.Orchestrator
	validator *validate.Validator
	origins   []string
}

// New creates a Server. origins configures CORS; empty allows any origin.
func New(st store.Store, authMgr *auth.Manager, orch *orchestrator.Orchestrator, validator *validate.Validator, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{store: st, auth: authMgr, orch: orch, validator: validator, origins: origins}
}

// Router builds the HTTP handler with CORS, panic recovery, and bearer-token
// auth on the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Post("/enrich", s.handleEnrich)
			r.Post("/enrich/{phase}", s.handleEnrichPhase)
			r.Post("/validate", s.handleValidate)
		})
	})

	return r
}

// authenticate requires a valid bearer token and stashes the identity on the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.auth.ValidateToken(header[len(prefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), *id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	id, _ := auth.FromContext(r.Context())

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if job.UserID != id.UserID && !s.auth.Elevated(id) {
		writeError(w, http.StatusForbidden, "not authorized for this job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type enrichRequest struct {
	Phases []string `json:"phases,omitempty"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	var req enrichRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	// Reject unknown phases before any work starts.
	if _, err := orchestrator.ResolvePhases(req.Phases); err != nil {
		writeError(w, http.StatusBadRequest, "unknown phase")
		return
	}

	s.runEnrichment(w, r, jobID, req.Phases)
}

func (s *Server) handleEnrichPhase(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	phase := chi.URLParam(r, "phase")
	if !model.KnownPhase(phase) {
		writeError(w, http.StatusBadRequest, "unknown phase")
		return
	}
	s.runEnrichment(w, r, jobID, []string{phase})
}

func (s *Server) runEnrichment(w http.ResponseWriter, r *http.Request, jobID string, phases []string) {
	id, _ := auth.FromContext(r.Context())

	summary, err := s.orch.Run(r.Context(), &id, jobID, phases)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type validateRequest struct {
	EnrichmentResults map[string]model.EnrichmentOutcome `json:"enrichment_results"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	id, _ := auth.FromContext(r.Context())

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.EnrichmentResults) == 0 {
		writeError(w, http.StatusBadRequest, "enrichment_results is required")
		return
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if job.UserID != id.UserID && !s.auth.Elevated(id) {
		writeError(w, http.StatusForbidden, "not authorized for this job")
		return
	}

	result, err := s.validator.Validate(r.Context(), job, req.EnrichmentResults)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// jobIDParam extracts and validates the job id path parameter. Malformed ids
// are rejected before any store access.
func jobIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return "", false
	}
	return id, true
}

func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownPhase):
		writeError(w, http.StatusBadRequest, "unknown phase")
	case errors.Is(err, orchestrator.ErrForbidden):
		writeError(w, http.StatusForbidden, "not authorized for this job")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "job was modified by a concurrent run")
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

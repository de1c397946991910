// Package chi exposes the search and indexing services over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
	healthuc "github.com/kailas-cloud/meetdex/internal/usecase/health"
	"github.com/kailas-cloud/meetdex/internal/usecase/indexer"
	searchuc "github.com/kailas-cloud/meetdex/internal/usecase/search"
)

// Error codes returned in the response body.
const (
	codeBadRequest      = "bad_request"
	codeMeetingNotFound = "meeting_not_found"
	codeInternalError   = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReindexSubmitter queues background reindex jobs.
type ReindexSubmitter interface {
	Submit(ctx context.Context, meetingID string) (*indexer.Job, error)
}

// Server holds the HTTP handlers.
type Server struct {
	search *searchuc.Service
	health *healthuc.Service
	worker ReindexSubmitter
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	health *healthuc.Service,
	worker ReindexSubmitter,
	logger *zap.Logger,
) *Server {
	return &Server{
		search: search,
		health: health,
		worker: worker,
		logger: logger,
	}
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.Search)
	r.Get("/strategies", s.Strategies)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/stats", s.Stats)
	r.Post("/meetings/{meetingID}/reindex", s.Reindex)
}

type searchRequest struct {
	Query    string        `json:"query"`
	OrgID    string        `json:"org_id"`
	Strategy string        `json:"strategy,omitempty"`
	TopK     int           `json:"top_k,omitempty"`
	History  []chatMessage `json:"history,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Search handles POST /search. Strategy failures come back as HTTP 200 with
// success=false; the transport only errors on malformed requests.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}

	history := make([]domain.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	result := s.search.Search(r.Context(), req.Strategy, searchuc.Request{
		Query:   req.Query,
		OrgID:   req.OrgID,
		TopK:    req.TopK,
		History: history,
	})
	writeJSON(w, http.StatusOK, result)
}

// Strategies handles GET /strategies.
func (s *Server) Strategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": s.search.Strategies(),
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.search.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": stats})
}

// Reindex handles POST /meetings/{meetingID}/reindex. The job runs in the
// background; the submitted job id comes back with 202. The job is detached
// from the request context so the response does not cancel it.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "meeting id is required")
		return
	}

	job, err := s.worker.Submit(context.WithoutCancel(r.Context()), meetingID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.ID,
		"meeting_id": job.MeetingID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrMeetingNotFound,
		domain.ErrStateNotFound,
		domain.ErrStrategyNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrMeetingNotFound):
		writeError(w, http.StatusNotFound, codeMeetingNotFound, msg)
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, codeBadRequest, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

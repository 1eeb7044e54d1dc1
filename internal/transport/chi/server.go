// Package chi is the HTTP transport: routing, request decoding, and the
// mapping from domain sentinel errors to status codes.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	answeruc "github.com/kailas-cloud/deskpilot/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/deskpilot/internal/usecase/health"
	"github.com/kailas-cloud/deskpilot/internal/usecase/indexer"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeRebuildInProgress = "rebuild_in_progress"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// answerService is the consumer interface for the answer pipeline.
type answerService interface {
	AnswerQuery(ctx context.Context, req answeruc.Request) domain.Answer
	Summarize(ctx context.Context, subject string, turns []domain.ConversationTurn, regenerate bool) (domain.StructuredDecision, error)
}

// eligibilityService is the consumer interface for the eligibility engine.
type eligibilityService interface {
	Check(ctx context.Context, req domain.EligibilityRequest) (domain.EligibilityDecision, error)
}

// indexerService is the consumer interface for index rebuilds.
type indexerService interface {
	Rebuild(ctx context.Context) (indexer.Stats, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	answers       answerService
	eligibility   eligibilityService
	indexing      indexerService
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	answers answerService,
	eligibility eligibilityService,
	indexing indexerService,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		answers:     answers,
		eligibility: eligibility,
		indexing:    indexing,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(indexer.ErrRebuildInProgress, http.StatusConflict, codeRebuildInProgress),
	}
	return s
}

// Routes mounts all handlers on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/answers", s.AnswerQuery)
	r.Post("/v1/eligibility", s.CheckEligibility)
	r.Post("/v1/summaries", s.Summarize)
	r.Post("/v1/reindex", s.Reindex)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/readyz", s.Readiness)
	r.Get("/metrics", s.Metrics)
}

// answerRequest is the body of POST /v1/answers.
type answerRequest struct {
	Query    string                    `json:"query"`
	History  []domain.ConversationTurn `json:"history,omitempty"`
	Category string                    `json:"category,omitempty"`
	Customer *domain.CustomerContext   `json:"customer,omitempty"`
}

// AnswerQuery handles POST /v1/answers.
func (s *Server) AnswerQuery(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ans := s.answers.AnswerQuery(r.Context(), answeruc.Request{
		Query:    req.Query,
		History:  req.History,
		Category: req.Category,
		Customer: req.Customer,
	})

	writeJSON(w, http.StatusOK, ans)
}

// CheckEligibility handles POST /v1/eligibility.
func (s *Server) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req domain.EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Category == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "category is required")
		return
	}
	if req.PurchaseDate == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "purchase_date is required")
		return
	}

	decision, err := s.eligibility.Check(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// summaryRequest is the body of POST /v1/summaries.
type summaryRequest struct {
	Subject    string                    `json:"subject"`
	Turns      []domain.ConversationTurn `json:"turns"`
	Regenerate bool                      `json:"regenerate,omitempty"`
}

// Summarize handles POST /v1/summaries.
func (s *Server) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	decision, err := s.answers.Summarize(r.Context(), req.Subject, req.Turns, req.Regenerate)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// Reindex handles POST /v1/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexing.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Readiness handles GET /readyz.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	if !s.health.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "index not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		indexer.ErrRebuildInProgress,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/record"
	contextoptuc "github.com/kailas-cloud/ragpipe/internal/usecase/contextopt"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	raguc "github.com/kailas-cloud/ragpipe/internal/usecase/rag"
	vectorstoreuc "github.com/kailas-cloud/ragpipe/internal/usecase/vectorstore"
)

const maxStoreBatch = 1000

// ErrorCode identifies an API error class.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeNotFound         ErrorCode = "not_found"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeEmbeddingError   ErrorCode = "embedding_provider_error"
	CodeTimeout          ErrorCode = "timeout"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the pipeline over HTTP.
type Server struct {
	pipeline      *raguc.Service
	store         *vectorstoreuc.Service
	conversations *contextoptuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline *raguc.Service,
	store *vectorstoreuc.Service,
	conversations *contextoptuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline:      pipeline,
		store:         store,
		conversations: conversations,
		health:        health,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrMissingContent, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmptyBatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError),
	}
	return s
}

// Register mounts all routes on r. Middleware is the caller's concern.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.Query)
		r.Post("/collections/{collection}/vectors", s.StoreVectors)
		r.Get("/conversations/{id}", s.GetConversation)
		r.Delete("/conversations/{id}", s.DeleteConversation)
	})
}

// Query handles POST /api/v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req raguc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.pipeline.Query(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// StoreVectorsRequest is the body of POST /collections/{collection}/vectors.
type StoreVectorsRequest struct {
	Records []StoreRecordItem `json:"records"`
	Method  string            `json:"method,omitempty"`
}

// StoreRecordItem is one pre-embedded record to persist.
type StoreRecordItem struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId,omitempty"`
	ChunkID    string          `json:"chunkId,omitempty"`
	Vector     []float32       `json:"vector"`
	Content    string          `json:"content"`
	Meta       record.Metadata `json:"meta,omitempty"`
}

// StoreVectors handles POST /api/v1/collections/{collection}/vectors.
func (s *Server) StoreVectors(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req StoreVectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Records) == 0 || len(req.Records) > maxStoreBatch {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("records count must be between 1 and %d", maxStoreBatch))
		return
	}

	method, err := methodFromString(req.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	records := make([]record.Record, 0, len(req.Records))
	for _, item := range req.Records {
		rec, err := record.New(item.ID, item.DocumentID, item.ChunkID, item.Vector, item.Content, item.Meta)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return
		}
		records = append(records, rec)
	}

	result, err := s.store.StoreVectors(r.Context(), collection, records, method)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func methodFromString(m string) (vectorstoreuc.Method, error) {
	switch m {
	case "", string(vectorstoreuc.MethodBulk):
		return vectorstoreuc.MethodBulk, nil
	case string(vectorstoreuc.MethodBatch):
		return vectorstoreuc.MethodBatch, nil
	case string(vectorstoreuc.MethodStream):
		return vectorstoreuc.MethodStream, nil
	default:
		return "", fmt.Errorf("method must be bulk, batch, or stream")
	}
}

// GetConversation handles GET /api/v1/conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, ok := s.conversations.Conversation(id)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.conversations.EndConversation(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "conversation not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// HealthCheck is one component check in a health response.
type HealthCheck struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]HealthCheck, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = HealthCheck{OK: v.OK, LatencyMS: v.LatencyMS, Error: v.Error}
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
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

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrTimeout,
		domain.ErrNotFound,
		domain.ErrMissingContent,
		domain.ErrEmptyBatch,
		domain.ErrInvalidConfig,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: msg}
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			resp.Stage = stageErr.Stage
		}
		writeJSON(w, status, resp)
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
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// Package chi exposes the question-answering service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tessellate-io/lectern/internal/domain"
	logpkg "github.com/tessellate-io/lectern/internal/logger"
	"github.com/tessellate-io/lectern/internal/metrics"
)

// AnswerService runs the question-answering chain.
type AnswerService interface {
	Answer(ctx context.Context, question, requestID string) (domain.Answer, error)
}

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker probes the embedding provider for the health endpoint.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server is the HTTP API.
type Server struct {
	answers       AnswerService
	pinger        Pinger
	embedding     EmbeddingChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. embedding may be nil to skip the
// provider probe on /healthz.
func NewServer(answers AnswerService, pinger Pinger, embedding EmbeddingChecker, logger *zap.Logger) *Server {
	s := &Server{
		answers:   answers,
		pinger:    pinger,
		embedding: embedding,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQuestion, http.StatusBadRequest, "empty_question"),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrModelInvocation, http.StatusBadGateway, "model_invocation_error"),
	}
	return s
}

// Routes builds the router with the standard middleware chain.
func (s *Server) Routes(apiKeys []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(jsonRecoverer(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Get("/answer", s.HandleAnswer)
	r.Get("/healthz", s.HandleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// answerResponse is the reply shape of GET /answer.
type answerResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// HandleAnswer handles GET /answer?query=...&request_id=...
func (s *Server) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	requestID := r.URL.Query().Get("request_id")

	ans, err := s.answers.Answer(r.Context(), query, requestID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Answer:    ans.Text,
		Sources:   ans.Sources,
		RequestID: requestID,
	})
}

// HandleHealth handles GET /healthz: database ping plus an embedding
// provider probe when one is configured.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unavailable"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.embedding != nil {
		checks["embedding"] = "ok"
		if err := s.embedding.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("embedding health check failed", zap.Error(err))
			checks["embedding"] = "unavailable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuestion,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProvider,
		domain.ErrModelInvocation,
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
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// wideEventMiddleware emits a canonical log line per request and propagates
// X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// jsonRecoverer converts panics into JSON 500 responses.
func jsonRecoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

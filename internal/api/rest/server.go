// Package rest exposes the HTTP surface: telephony webhooks, scheduler
// administration and health checks.
package rest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/config"
)

// Server wraps the HTTP listener and routes.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer wires the routes and middleware chain.
func NewServer(cfg config.ServerConfig, h *Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /webhooks/voice/answer", h.VoiceAnswer)
	mux.HandleFunc("POST /webhooks/voice/turn", h.VoiceTurn)
	mux.HandleFunc("POST /webhooks/voice/status", h.VoiceStatus)
	mux.HandleFunc("POST /webhooks/voice/recording", h.VoiceRecording)

	mux.HandleFunc("POST /api/v1/calls", h.InitiateCall)
	mux.HandleFunc("GET /api/v1/scheduler", h.SchedulerStatus)
	mux.HandleFunc("POST /api/v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /api/v1/scheduler/stop", h.SchedulerStop)
	mux.HandleFunc("POST /api/v1/scheduler/restart", h.SchedulerRestart)

	var handler http.Handler = mux
	handler = recoveryMiddleware(logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
				"request_id", r.Context().Value(requestIDKey),
			)
		})
	}
}

func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panicked",
						"panic", rec,
						"path", r.URL.Path,
					)
					writeError(w, errors.NewInternalError("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an AppError onto its HTTP status. The response carries
// the public code and message only; causes stay in the logs.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !goerrors.As(err, &appErr) {
		appErr = errors.NewInternalError("internal server error")
	}
	writeJSON(w, appErr.StatusCode, map[string]interface{}{
		"error": map[string]string{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

// writeTwiML sends a transport instruction document.
func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

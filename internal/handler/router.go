// Package handler exposes the simulation service over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jialuechen/genmarket/internal/service"
)

// NewRouter creates a chi router with all routes registered and request
// logging middleware.
func NewRouter(simSvc *service.SimulationService, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	simH := NewSimulationHandler(simSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Simulation routes.
	r.Post("/simulations", simH.Create)
	r.Get("/simulations/{batch_id}", simH.Get)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

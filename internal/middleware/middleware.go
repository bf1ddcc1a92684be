// Package middleware carries the HTTP middleware for the local activation
// API: request tracing, panic recovery, and the activation-attempt rate
// limit.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "beirutpos/internal/errors"
	"beirutpos/internal/infrastructure"
)

// RequestIDHeader carries the trace ID in responses so the UI can quote it
// in support requests.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a trace ID, honoring one supplied by the
// client, and stores it in the context for the logging handler.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(RequestIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := infrastructure.WithTraceID(r.Context(), traceID)
		w.Header().Set(RequestIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recoverer converts handler panics into a logged 500 problem response
// instead of tearing down the process.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "handler panic",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path))
					problem := apperrors.NewProblemDetails(
						http.StatusInternalServerError,
						"/errors/internal",
						"Internal Server Error",
						"An unexpected error occurred",
						r.URL.Path,
					)
					render.Render(w, r, problem)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter throttles activation attempts. Voucher check characters are
// guessable given enough tries; the token bucket keeps the API from being a
// brute-force oracle.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter allowing rps sustained requests with the
// given burst.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(slog.String("component", "rate_limiter")),
	}
}

// Handler implements the rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !rl.limiter.Allow() {
			rl.logger.WarnContext(ctx, "rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set("Retry-After", "30")
			problem := apperrors.NewProblemDetails(
				http.StatusTooManyRequests,
				"/errors/rate-limit-exceeded",
				"Too Many Requests",
				"Too many activation attempts. Wait a moment and retry.",
				r.URL.Path,
			)
			problem.WithExtension("trace_id", infrastructure.TraceID(ctx))
			problem.WithExtension("retry_after_seconds", 30)
			render.Render(w, r, problem)
			return
		}
		next.ServeHTTP(w, r)
	})
}

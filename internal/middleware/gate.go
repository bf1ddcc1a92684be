package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"beirutpos/internal/activation"
	apperrors "beirutpos/internal/errors"
	"beirutpos/internal/infrastructure"
)

// StatusProvider is the slice of the activation manager the gate needs.
type StatusProvider interface {
	Status(ctx context.Context) (*activation.Status, error)
}

// Gate blocks application routes until the installation is Active. The
// activation endpoints themselves, the event socket, and the health check
// stay reachable so an unactivated installation can still be activated.
type Gate struct {
	provider StatusProvider
	logger   *slog.Logger

	excludePaths    map[string]struct{}
	excludePrefixes []string
}

// NewGate creates the activation gate with the default exclusions.
func NewGate(provider StatusProvider, logger *slog.Logger) *Gate {
	return &Gate{
		provider: provider,
		logger:   logger.With(slog.String("component", "activation_gate")),
		excludePaths: map[string]struct{}{
			"/healthz": {},
			"/ws":      {},
		},
		excludePrefixes: []string{
			"/api/activation",
		},
	}
}

// Handler enforces the gate.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		status, err := g.provider.Status(ctx)
		if err != nil {
			g.logger.ErrorContext(ctx, "gate status check failed",
				slog.String("error", err.Error()))
			render.Render(w, r, apperrors.Problem(err, r.URL.Path, infrastructure.TraceID(ctx)))
			return
		}

		if status.State != activation.StateActive {
			g.logger.WarnContext(ctx, "request blocked by activation gate",
				slog.String("path", r.URL.Path),
				slog.String("state", string(status.State)))

			problem := apperrors.Problem(apperrors.ErrNotActivated, r.URL.Path, infrastructure.TraceID(ctx))
			problem.WithExtension("state", string(status.State))
			render.Render(w, r, problem)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) excluded(path string) bool {
	if _, ok := g.excludePaths[path]; ok {
		return true
	}
	for _, prefix := range g.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

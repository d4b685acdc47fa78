package portal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/me/tutordesk/internal/apiclient"
	"github.com/me/tutordesk/internal/guard"
	"github.com/me/tutordesk/internal/session"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyBrowser   ctxKey = "browser"
	ctxKeyDecision  ctxKey = "decision"
)

// browser is the calling browser's session namespace.
type browser struct {
	id    string
	store session.Store
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func browserFrom(ctx context.Context) browser {
	b, _ := ctx.Value(ctxKeyBrowser).(browser)
	return b
}

// decisionFrom returns the guard decision that let the current view mount.
func decisionFrom(ctx context.Context) guard.Decision {
	d, _ := ctx.Value(ctxKeyDecision).(guard.Decision)
	return d
}

// requestIDMiddleware generates a request_id and stores it in context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := "req_" + uuid.NewString()[:8]
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests at INFO level (method, path, status, duration).
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// browserMiddleware attaches the caller's session namespace to the context.
func (p *Portal) browserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, st := p.sessions.Browser(w, r, p.secure)
		if err := p.sessions.Seen(r.Context(), id); err != nil {
			p.logger.Warn("record session activity failed", "error", err)
		}
		ctx := context.WithValue(r.Context(), ctxKeyBrowser, browser{id: id, store: st})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRoute runs the guard for route. A redirect decision answers 303
// to the target and the view's handler never runs.
func (p *Portal) requireRoute(route guard.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := p.guardFor(r).Enter(r.Context(), route)
			if err != nil {
				p.renderError(w, "Session unavailable", err)
				return
			}
			if !d.Mount {
				http.Redirect(w, r, string(d.Target), http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyDecision, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientFor returns an API client bound to the caller's session.
func (p *Portal) clientFor(r *http.Request) *apiclient.Client {
	return p.client.WithSession(browserFrom(r.Context()).store)
}

// guardFor returns a guard bound to the caller's session.
func (p *Portal) guardFor(r *http.Request) *guard.Guard {
	return p.guard.WithStore(browserFrom(r.Context()).store)
}

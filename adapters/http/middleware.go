package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/app"
	"github.com/arvend/tokengate/domain/access"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Authenticator turns a session token into an identity.
type Authenticator interface {
	VerifyToken(token string) (access.Identity, error)
}

type identityKey struct{}

// SessionCookie is the cookie the chat frontend stores its session in.
const SessionCookie = "session"

// NewSessionMiddleware authenticates requests via Authorization bearer
// token or the session cookie. Public paths pass through anonymously;
// everything else under the API requires a valid session.
func NewSessionMiddleware(auth Authenticator, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractSessionToken(r)
			if token == "" {
				if access.IsPublicPath(r.URL.Path) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", "session required")
				return
			}

			id, err := auth.VerifyToken(token)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("session rejected")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewGateMiddleware enforces the subscription gate on routes that
// consume model usage. Denials return 402 with the full check result
// so clients can render the paywall.
func NewGateMiddleware(guard *app.Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "session required")
				return
			}
			if guard.ShouldBypass(&id, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			st := guard.Resolve(r.Context(), id)
			if st.State != app.StateGranted {
				writeJSON(w, http.StatusPaymentRequired, st.Result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractSessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// NewMetricsMiddleware records per-request counters and latency. Path
// labels use the chi route pattern, not the raw URL, to keep
// cardinality bounded.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := chi.RouteContext(r.Context()).RoutePattern()
			if path == "" {
				path = "unmatched"
			}
			m.RequestsTotal.WithLabelValues(r.Method, path, statusClass(ww.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

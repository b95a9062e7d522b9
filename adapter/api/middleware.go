package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/caravan/internal/identity/application/auth"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	requestIDHeader     = "X-Request-ID"
	correlationIDHeader = "X-Correlation-ID"
)

// Authenticator resolves a bearer token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the caller stored by authenticate. Routes behind
// the middleware always have one.
func principalFrom(ctx context.Context) auth.Principal {
	p, _ := ctx.Value(principalKey{}).(auth.Principal)
	return p
}

// requestContext starts the request scope, honouring caller-supplied ids.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), r.Header.Get(requestIDHeader))
		ctx = observability.WithCorrelationID(ctx, r.Header.Get(correlationIDHeader))
		w.Header().Set(requestIDHeader, observability.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request and records HTTP metrics tagged
// by route pattern, so path ids do not explode cardinality.
func requestLogger(logger *slog.Logger, metrics observability.Metrics) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			tags := []observability.Tag{
				observability.T("method", r.Method),
				observability.T("route", route),
				observability.T("status", strconv.Itoa(status)),
			}
			metrics.Counter(observability.MetricHTTPRequests, 1, tags...)
			metrics.Timing(observability.MetricHTTPDuration, elapsed, tags...)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				observability.StatusKey, status,
				observability.DurationKey, elapsed.Milliseconds(),
				observability.RequestIDKey, observability.RequestIDFromContext(r.Context()),
			)
		})
	}
}

// authenticate rejects requests without a valid bearer token.
func authenticate(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: CodeUnauthorized, Message: "missing bearer token"})
				return
			}
			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				apiErr := toAPIError(err)
				writeJSON(w, apiErr.Status, ErrorResponse{Error: apiErr.Code, Message: apiErr.Message})
				return
			}
			ctx := withPrincipal(r.Context(), p)
			ctx = observability.WithUserID(ctx, p.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

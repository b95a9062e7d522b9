// Package api serves caravan over HTTP: JSON routes under /api, the STOMP
// chat broker at /ws, and health probes.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/caravan/internal/app"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	server *http.Server
	logger *slog.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:               "0.0.0.0:8080",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

// NewServer creates the server. broker may be nil, which leaves /ws
// unrouted.
func NewServer(cfg ServerConfig, c *app.Container, broker *Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: NewRouter(cfg, c, broker, logger),
		logger: logger,
	}
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. Hijacked WebSocket
// connections are closed by the broker, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

type handlers struct {
	c        *app.Container
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(cfg ServerConfig, c *app.Container, broker *Broker, logger *slog.Logger) chi.Router {
	h := &handlers{c: c, validate: newValidator(), logger: logger}

	r := chi.NewRouter()
	r.Use(requestContext)
	r.Use(requestLogger(logger, c.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader, correlationIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleLiveness)
	r.Get("/readyz", h.handleReadiness)
	if broker != nil {
		r.Get("/ws", broker.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.wrap(h.register))
		r.Post("/auth/login", h.wrap(h.login))
		r.Get("/files/*", h.wrap(h.downloadFile))

		r.Group(func(r chi.Router) {
			r.Use(authenticate(c.Auth))

			r.Get("/auth/me", h.wrap(h.me))
			r.Post("/auth/logout", h.wrap(h.logout))

			r.Route("/travel-plans", func(r chi.Router) {
				r.Post("/", h.wrap(h.createPlan))
				r.Get("/discovery", h.wrap(h.discoverPlans))
				r.Get("/search", h.wrap(h.searchPlans))
				r.Get("/current", h.wrap(h.currentPlans))
				r.Get("/history", h.wrap(h.historyPlans))
				r.Get("/check-current", h.wrap(h.checkCurrent))
				r.Get("/{id}", h.wrap(h.getPlan))
				r.Post("/{id}/apply", h.wrap(h.apply))
				r.Post("/{id}/cancel-application", h.wrap(h.cancelApplication))
				r.Post("/{id}/invite", h.wrap(h.invite))
				r.Post("/{id}/accept-invitation", h.wrap(h.decideInvitation(acceptDecision)))
				r.Post("/{id}/refuse-invitation", h.wrap(h.decideInvitation(refuseDecision)))
				r.Post("/{id}/members/{userId}/accept", h.wrap(h.decideApplication(acceptDecision)))
				r.Post("/{id}/members/{userId}/refuse", h.wrap(h.decideApplication(refuseDecision)))
				r.Post("/{id}/applications/{userId}/accept", h.wrap(h.decideApplication(acceptDecision)))
				r.Post("/{id}/applications/{userId}/refuse", h.wrap(h.decideApplication(refuseDecision)))
				r.Post("/{id}/close", h.wrap(h.closePlan))
				r.Post("/{id}/start", h.wrap(h.startPlan))
				r.Post("/{id}/complete", h.wrap(h.completePlan))
			})

			r.Get("/chat/{id}/messages", h.wrap(h.chatHistory))

			r.Get("/polls/{id}", h.wrap(h.listPolls))
			r.Post("/polls/{id}", h.wrap(h.createPoll))
			r.Post("/polls/{id}/vote", h.wrap(h.vote))
			r.Post("/polls/{id}/close", h.wrap(h.closePoll))

			r.Get("/expenses/{id}", h.wrap(h.listExpenses))
			r.Post("/expenses/{id}", h.wrap(h.createExpense))
			r.Get("/expenses/{id}/summary", h.wrap(h.expenseSummary))
			r.Post("/expenses/{id}/allocations/{allocationId}/paid", h.wrap(h.markPaid))

			r.Get("/notifications", h.wrap(h.listNotifications))
			r.Post("/notifications/{id}/read", h.wrap(h.markNotificationRead))

			r.Post("/files", h.wrap(h.uploadFile))
		})
	})
	return r
}

func (h *handlers) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) handleReadiness(w http.ResponseWriter, r *http.Request) {
	health := h.c.Health.Check(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// apiHandler is an http.HandlerFunc that reports failure by returning it.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

// wrap renders a returned error as an ErrorResponse.
func (h *handlers) wrap(fn apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		apiErr := toAPIError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, apiErr.Status, ErrorResponse{Error: apiErr.Code, Message: apiErr.Message, Fields: apiErr.Fields})
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// NewContainerBroker wires a broker over the container's chat handlers.
func NewContainerBroker(cfg BrokerConfig, c *app.Container) *Broker {
	return NewBroker(cfg, c.Auth, c.PlanAccess, c.SendMessage, c.GetMessage, c.Metrics, c.Logger)
}

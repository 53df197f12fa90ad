// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/paramapi/internal/adapters/http/binding"
	"github.com/okian/paramapi/internal/adapters/http/swagger"
	"github.com/okian/paramapi/pkg/logger"
	"github.com/okian/paramapi/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UserDependencies
	ItemDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	cfg serverConfig

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	usersHandler  *UsersHandler
	itemsHandler  *ItemsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := binding.New(binding.WithMaxMemory(cfg.maxBodyBytes))
	b.RegisterStructRule(listLimitRule(cfg.maxListLimit), listUsersRequest{})

	rb := &requestBinder{binder: b, logger: cfg.logger}
	return &Server{
		cfg:           cfg,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		usersHandler:  NewUsersHandler(deps, rb, cfg.defaultListLimit, cfg.logger),
		itemsHandler:  NewItemsHandler(deps, rb),
	}
}

// Routes builds the router with middleware, API routes and docs.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(s.cfg.logger))
	r.Use(Recoverer(s.cfg.logger))
	r.Use(MaxBodyBytes(s.cfg.maxBodyBytes))

	r.NotFound(MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	}, "not_found"))
	r.MethodNotAllowed(MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	}, "method_not_allowed"))

	r.Get("/", MetricsMiddleware(s.healthHandler.HandleRoot, "root"))
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Get("/users/{user_id}", MetricsMiddleware(s.usersHandler.HandleGetUser, "get_user"))
	r.Put("/users/{user_id}", MetricsMiddleware(s.usersHandler.HandleUpdateUser, "update_user"))
	r.Get("/users", MetricsMiddleware(s.usersHandler.HandleListUsers, "list_users"))
	r.Post("/users", MetricsMiddleware(s.usersHandler.HandleCreateUser, "create_user"))

	r.Post("/items/form", MetricsMiddleware(s.itemsHandler.HandleCreateItemForm, "create_item_form"))
	r.Post("/items/json", MetricsMiddleware(s.itemsHandler.HandleCreateItemJSON, "create_item_json"))
	r.Get("/search", MetricsMiddleware(s.itemsHandler.HandleSearch, "search_items"))

	swagger.Register(ctx, r)
	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

type notFoundResponse struct {
	Error string `json:"error"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type validationResponse struct {
	Detail []binding.Issue `json:"detail"`
}

const userNotFound = "User not found"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// requestBinder binds a request and writes the 422 response on failure.
type requestBinder struct {
	binder *binding.Binder
	logger logger.Logger
}

func (rb *requestBinder) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := rb.binder.Bind(r, dst)
	if err == nil {
		return true
	}
	var verr *binding.ValidationError
	if errors.As(err, &verr) {
		for _, is := range verr.Issues {
			metrics.RecordValidationFailure(string(is.Source()), is.Type)
		}
		rb.logger.Debug(r.Context(), "request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("issues", len(verr.Issues)),
		)
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Detail: verr.Issues})
		return false
	}
	rb.logger.Error(r.Context(), "bind request", logger.Error(err))
	writeDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	return false
}

// writeServiceError maps a service error to a response. Misses are reported
// with 200 and an error body.
func writeServiceError(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	if isNotFound(err) {
		writeJSON(w, http.StatusOK, notFoundResponse{Error: userNotFound})
		return
	}
	log.Error(ctx, "service call failed", logger.Error(err))
	writeDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

package api

import (
	"net/http"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/api/event"
	"task-automator-api/internal/api/execution"
	"task-automator-api/internal/api/health"
	"task-automator-api/internal/api/preset"
	"task-automator-api/internal/api/rule"
	"task-automator-api/internal/api/task"
	"task-automator-api/internal/engine"
	taskstore "task-automator-api/internal/store/task"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// JWTSecret enables bearer-token auth on /api/v1 when set.
	JWTSecret string
	// Tasks enables the /tasks routes when set.
	Tasks taskstore.Storer
	// DB is pinged by /health when set.
	DB health.Pinger
}

type Server struct {
	Router *chi.Mux
	engine *engine.Engine
	opts   Options
	Logger *zap.Logger
}

func NewServer(eng *engine.Engine, logger *zap.Logger, opts Options) *Server {
	server := &Server{
		Router: chi.NewRouter(),
		engine: eng,
		opts:   opts,
		Logger: logger.With(zap.String("component", "api")),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(s.requestLogger)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.Router.Get("/health", health.HandleHealth(s.opts.DB, s.Logger))
	s.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.WriteJSONError(w, http.StatusNotFound, "route not found", s.Logger)
	})

	s.Router.Route("/api/v1", func(r chi.Router) {
		if s.opts.JWTSecret != "" {
			r.Use(s.authMiddleware)
		}

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", rule.HandleCreateRule(s.engine, s.Logger))
			r.Get("/", rule.HandleGetRules(s.engine, s.Logger))
			r.Get("/{ruleId}", rule.HandleGetRule(s.engine, s.Logger))
			r.Patch("/{ruleId}", rule.HandleUpdateRule(s.engine, s.Logger))
			r.Delete("/{ruleId}", rule.HandleDeleteRule(s.engine, s.Logger))
			r.Put("/{ruleId}/toggle", rule.HandleToggleRule(s.engine, s.Logger))
		})

		r.Post("/events", event.HandlePublishEvent(s.engine, s.Logger))

		r.Get("/executions", execution.HandleGetExecutions(s.engine, s.Logger))
		r.Delete("/executions", execution.HandleClearExecutions(s.engine, s.Logger))

		r.Get("/presets", preset.HandleGetPresets(s.engine, s.Logger))
		r.Post("/presets/{presetId}/install", preset.HandleInstallPreset(s.engine, s.Logger))

		if s.opts.Tasks != nil {
			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", task.HandleCreateTask(s.opts.Tasks, s.engine, s.Logger))
				r.Get("/", task.HandleGetTasks(s.opts.Tasks, s.Logger))
				r.Get("/{taskId}", task.HandleGetTask(s.opts.Tasks, s.Logger))
				r.Patch("/{taskId}", task.HandleUpdateTask(s.opts.Tasks, s.engine, s.Logger))
				r.Post("/{taskId}/tags", task.HandleAddTag(s.opts.Tasks, s.engine, s.Logger))
			})
		}
	})
}

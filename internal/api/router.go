package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/idfine/chatbot-platform/internal/http/middleware"
	"github.com/idfine/chatbot-platform/internal/livesupport"
	"github.com/idfine/chatbot-platform/internal/observability/metrics"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *ChatHandler
	LiveSupportHandler *livesupport.Handler
	WSHandler          *livesupport.WSHandler
	LiveSupportMetrics *metrics.LiveSupportMetrics
	AgentJWTSecret     string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (widget traffic, health checks)
	r.Group(func(public chi.Router) {
		if cfg.ChatHandler != nil {
			public.Get("/health", cfg.ChatHandler.Health)
			public.Route("/api/chat", func(r chi.Router) {
				r.Post("/message", cfg.ChatHandler.Message)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		// The widget escalates without agent credentials.
		if cfg.LiveSupportHandler != nil {
			public.Post("/api/live-support/escalate/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
				cfg.LiveSupportMetrics.ObserveEscalation("received")
				cfg.LiveSupportHandler.Escalate(w, r)
			})
		}
		if cfg.WSHandler != nil {
			// The notifications route must be registered before the
			// conversation route or chi would swallow it as an id.
			public.Get("/ws/live-support/notifications", cfg.WSHandler.ServeNotifications)
			public.Get("/ws/live-support/{conversationID}", cfg.WSHandler.ServeAgent)
			public.Get("/ws/widget/{sessionID}", cfg.WSHandler.ServeWidget)
		}
	})

	// Agent routes (protected by agent JWT)
	if cfg.LiveSupportHandler != nil && cfg.AgentJWTSecret != "" {
		r.Route("/api/live-support", func(agent chi.Router) {
			agent.Use(httpmiddleware.AgentJWT(cfg.AgentJWTSecret))
			agent.Mount("/", cfg.LiveSupportHandler.Routes())
		})
	}

	return r
}

package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/shared/auth"
	"github.com/destone28/aureavia/internal/shared/config"
	"github.com/destone28/aureavia/internal/shared/ws"
)

// NewDispatchRouter собирает роутер диспетчерского сервиса: аутентификация,
// API поездок и WebSocket для живых уведомлений.
func NewDispatchRouter(
	authHandler *AuthHandler,
	apiHandler *APIHandler,
	hub *ws.Hub,
	jwtService *auth.JWTService,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/ws", hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", authHandler.Routes)
		r.Group(func(r chi.Router) {
			r.Use(JWTMiddleware(jwtService, log))
			apiHandler.Routes(r)
		})
	})
	return r
}

// NewWebhookRouter собирает роутер сервиса вебхуков внешних платформ.
func NewWebhookRouter(
	webhookHandler *WebhookHandler,
	cfg config.WebhookConfig,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(RateLimit(cfg.RatePerSecond, cfg.Burst))
		r.Use(WebhookAuth(cfg.Secret))
		webhookHandler.Routes(r)
	})
	return r
}

// handleHealth — liveness probe.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/hub"
	"github.com/DoyleJ11/auction-draft-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, defaults engine.Defaults, log *zap.Logger, originPatterns ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/leagues", CreateLeague(h, log))
	r.Get("/leagues/{code}", GetLeague(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, defaults, log, originPatterns...))
	return r
}

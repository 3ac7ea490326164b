package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(b Backend, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz(b))
	r.Get("/runtime-config.json", RuntimeConfig(b))
	r.Get("/state", State(b))
	r.Get("/events", Events(b))
	r.Post("/reconnect", Reconnect(b, log))
	return r
}

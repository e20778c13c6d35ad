package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/together/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(d))
		r.With(
			mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
			LoggedIn(d),
		).Get("/status", handlers.Status(d))
	})
}

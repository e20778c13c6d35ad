package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/httpserver/handlers"
)

func init() { Register(registerHome, LoggedIn) }

func registerHome(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Home(d))
}

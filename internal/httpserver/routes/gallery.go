package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/httpserver/handlers"
)

func init() { Register(registerGallery, LoggedIn) }

func registerGallery(r chi.Router, d deps.Deps) {
	r.Get("/gallery", handlers.Gallery(d))
	r.Post("/upload", handlers.Upload(d))
	r.Post("/delete", handlers.DeleteImage(d))
	r.Get("/images/{id}", handlers.ServeImage(d))
}

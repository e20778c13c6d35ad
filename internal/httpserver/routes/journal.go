package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/httpserver/handlers"
)

func init() { Register(registerJournal, LoggedIn) }

func registerJournal(r chi.Router, d deps.Deps) {
	r.Get("/journal", handlers.JournalList(d))
	r.Get("/add_entry", handlers.AddEntryForm(d))
	r.Post("/add_entry", handlers.AddEntry(d))
	r.Get("/edit/{id}", handlers.EditEntry(d))
	r.Post("/update/{id}", handlers.UpdateEntry(d))
	r.Post("/delete_entry", handlers.DeleteEntry(d))
	r.Get("/view/{id}", handlers.ViewEntry(d))
}

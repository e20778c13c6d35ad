package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/together/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Limit:      d.LoginRateLimit,
		Window:     d.LoginRateWindow,
		TrustProxy: d.TrustProxy,
		Rejected:   handlers.LoginThrottled(d),
	})

	r.Get("/login", handlers.LoginForm(d))
	r.With(limit).Post("/login", handlers.Login(d))
	r.Get("/logout", handlers.Logout(d))
}

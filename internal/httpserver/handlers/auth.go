package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/logger"
	"github.com/MrSnakeDoc/together/internal/utils"
)

func LoginForm(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Sessions.Valid(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		render(d, w, http.StatusOK, "login", newView(d, w, r, "Log in", nil))
	}
}

func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Password.Verify(r.PostFormValue("password")) {
			d.Logger.Warn("login failed", logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))
			render(d, w, http.StatusUnauthorized, "login", newView(d, w, r, "Log in", "Wrong password"))
			return
		}

		if err := d.Sessions.Issue(w, r); err != nil {
			d.Logger.Error("failed to issue session", logger.Error(err))
			render(d, w, http.StatusInternalServerError, "login", newView(d, w, r, "Log in", "Login failed, please retry"))
			return
		}
		d.Logger.Info("login succeeded", logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LoginThrottled answers a rate-limited login attempt.
func LoginThrottled(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Logger.Warn("login throttled", logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))
		msg := "Too many attempts, retry in " + w.Header().Get("Retry-After") + " seconds"
		render(d, w, http.StatusTooManyRequests, "login", newView(d, w, r, "Log in", msg))
	}
}

func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Sessions.Clear(w)
		redirect(w, r, "/login", "You have been logged out")
	}
}

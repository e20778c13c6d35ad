package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/together/internal/logger"
)

// SessionChecker reports whether r carries a valid login session.
type SessionChecker interface {
	Valid(r *http.Request) bool
}

// RequireLogin sends requests without a valid session to loginPath.
func RequireLogin(sessions SessionChecker, loginPath string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.Valid(r) {
				log.Debug("no session, redirecting to login", logger.String("path", r.URL.Path))
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

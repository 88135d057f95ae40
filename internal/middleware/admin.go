package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/pixelhaven/marketplace/internal/app/auth"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// AdminGuard enforces the admin role ahead of administrative routes.
// The API and page variants differ only in how they refuse: both run
// the same role resolution through auth.Guard.
type AdminGuard struct {
	guard *auth.Guard
	log   *logger.Logger

	// Page-variant redirect targets.
	SignInPath string
	HomePath   string
}

// NewAdminGuard creates the guard middleware.
func NewAdminGuard(guard *auth.Guard, log *logger.Logger) *AdminGuard {
	if log == nil {
		log = logger.NewDefault("admin-guard")
	}
	return &AdminGuard{
		guard:      guard,
		log:        log,
		SignInPath: "/signin",
		HomePath:   "/",
	}
}

// API refuses with a JSON 401/403 body.
func (g *AdminGuard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.guard.RequireAdmin(r.Context(), GetUserID(r.Context())); err != nil {
			g.respondJSON(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Pages refuses by redirecting: unauthenticated requests to the sign-in
// route, authenticated non-admins to home.
func (g *AdminGuard) Pages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.guard.RequireAdmin(r.Context(), GetUserID(r.Context())); err != nil {
			target := g.HomePath
			if svcerr.IsCode(err, svcerr.CodeUnauthenticated) {
				target = g.SignInPath
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *AdminGuard) respondJSON(w http.ResponseWriter, err error) {
	se := svcerr.GetServiceError(err)
	if se == nil {
		se = svcerr.Dependency("authorization failed", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  se.Message,
		"status": se.HTTPStatus,
	})
}

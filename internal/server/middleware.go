package server

import (
	"net/http"

	"frootex/backend/internal/routing"
)

// principalFromRequest validates the session cookie and returns the principal
// id, or "".
func (s *Server) principalFromRequest(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	id, err := s.deps.Tokens.ValidateSession(c.Value)
	if err != nil {
		return ""
	}
	return id
}

// requireSession rejects API requests without a valid session cookie.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.principalFromRequest(r)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipalID(r.Context(), id)))
	})
}

// requirePage guards a role-gated page. Unauthenticated visitors go to the
// login page; authenticated visitors with the wrong role go home. Role checks
// run through the policy engine, same as redirect resolution.
func (s *Server) requirePage(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := s.principalFromRequest(r)
			if id == "" {
				http.Redirect(w, r, routing.PathLogin, http.StatusFound)
				return
			}
			p, err := s.deps.Profiles.Get(r.Context(), id)
			if err != nil || p == nil {
				// Signed in but no role record (e.g. an orphaned account):
				// treated as no access to role pages.
				http.Redirect(w, r, routing.PathHome, http.StatusFound)
				return
			}
			ok, err := s.deps.Routes.Allow(r.Context(), string(p.Role), path)
			if err != nil || !ok {
				http.Redirect(w, r, routing.PathHome, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipalID(r.Context(), id)))
		})
	}
}

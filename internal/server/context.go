package server

import (
	"context"
	"net"
	"net/http"
)

type ctxKeyPrincipalID struct{}
type ctxKeyClientIP struct{}

func withPrincipalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipalID{}, id)
}

// PrincipalIDFromContext returns the authenticated principal id, or "".
func PrincipalIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyPrincipalID{}).(string)
	return id
}

// withClientIP stores the request's client IP so the audit logger can pick it
// up from any context derived from the request.
func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClientIP{}, ip)))
	})
}

// ClientIPFromContext is the audit.IPExtractor for this server.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return ip
}

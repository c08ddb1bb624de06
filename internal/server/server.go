// Package server exposes the auth flow and the role-gated pages over HTTP.
// One Controller per browser flow, keyed by an opaque cookie; resolved flows
// become a signed session cookie.
package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"frootex/backend/internal/audit"
	"frootex/backend/internal/authflow"
	"frootex/backend/internal/blobstore"
	"frootex/backend/internal/config"
	"frootex/backend/internal/devotp"
	"frootex/backend/internal/identity"
	"frootex/backend/internal/profile"
	"frootex/backend/internal/realtime"
	"frootex/backend/internal/routing"
	"frootex/backend/internal/security"
	"frootex/backend/internal/session"
	"frootex/backend/internal/verifier"
)

const (
	flowCookieName    = "frootex_flow"
	sessionCookieName = "frootex_session"
)

// Deps carries everything the server needs. All fields are required unless
// noted.
type Deps struct {
	Config   *config.Config
	Provider identity.Provider
	Flows    *authflow.Registry
	Tracker  *session.Tracker
	Profiles *profile.Store
	Routes   *routing.Engine
	Tokens   *security.TokenProvider
	Audit    *audit.Logger
	Hub      *realtime.Hub
	// CaptchaTokens receives client widget tokens per flow before SendOTP.
	CaptchaTokens *verifier.TokenBag
	// Blobs serves POST /dashboard/upload. Nil disables uploads.
	Blobs blobstore.Store
	// StaticRoot, when non-empty, is served under /static/.
	StaticRoot string
	// DevOTP enables GET /dev/otp. Nil outside dev mode.
	DevOTP devotp.Store
	// DB is pinged by /healthz. Nil skips the ping.
	DB *sql.DB
}

// Server is the HTTP front of the auth flow.
type Server struct {
	deps     Deps
	upgrader websocket.Upgrader

	unsubscribe func()
}

// New wires a Server and subscribes the realtime hub to auth-state changes.
func New(deps Deps) *Server {
	s := &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(deps.Config.AllowedOriginsList()),
		},
	}
	s.unsubscribe = deps.Tracker.Subscribe(deps.Hub.Broadcast)
	return s
}

// Close releases the tracker subscription.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Router builds the route tree.
func (s *Server) Router() *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Logger)
	mux.Use(chimw.Recoverer)
	mux.Use(withClientIP)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.Config.AllowedOriginsList(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/otp/send", s.handleSendOTP)
		r.Post("/otp/verify", s.handleVerifyOTP)
		r.Post("/otp/resend", s.handleResendOTP)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
		r.Get("/session/watch", s.handleSessionWatch)
	})

	mux.With(s.requirePage(routing.PathFarmer)).Get(routing.PathFarmer, s.handleDashboard("farmer"))
	mux.With(s.requirePage(routing.PathBuyer)).Get(routing.PathBuyer, s.handleDashboard("buyer"))

	if s.deps.Blobs != nil {
		mux.With(s.requireSession).Post("/dashboard/upload", s.handleUpload)
	}
	if s.deps.StaticRoot != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.deps.StaticRoot)))
		mux.Handle("/static/*", fs)
	}
	if s.deps.DevOTP != nil {
		mux.Get("/dev/otp", s.handleDevOTP)
	}

	mux.Get("/healthz", s.handleHealthz)
	return mux
}

// flow returns the caller's flow controller, minting a new flow and cookie
// when none exists or the old one expired.
func (s *Server) flow(w http.ResponseWriter, r *http.Request) (string, *authflow.Controller) {
	if c, err := r.Cookie(flowCookieName); err == nil && c.Value != "" {
		if ctl := s.deps.Flows.Get(c.Value); ctl != nil {
			return c.Value, ctl
		}
	}
	id, ctl := s.deps.Flows.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(authflow.DefaultFlowTTL / time.Second),
	})
	return id, ctl
}

// endFlow drops the flow once it has resolved. The next auth attempt starts
// from a fresh controller.
func (s *Server) endFlow(w http.ResponseWriter, id string) {
	s.deps.Flows.Delete(id)
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.deps.Config.Env == "production",
		Expires:  expiresAt,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		_, ok := set[origin]
		return ok
	}
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsession/internal/agent/navigator"
	"github.com/aussiebroadwan/authsession/internal/agent/notice"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"

	_ "github.com/aussiebroadwan/authsession/api/agent" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// StorageStatus reports whether session storage fell back to memory.
type StorageStatus interface {
	Degraded() bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	coord        *session.Coordinator
	nav          *navigator.Navigator
	notice       *notice.Notice
	storage      StorageStatus
	home         string
	secret       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

// NewRouter wires the agent's endpoints. home is the application URL used
// to validate return_to targets; secret, when set, guards the /v1 API and
// logout.
func NewRouter(
	coord *session.Coordinator,
	nav *navigator.Navigator,
	ntc *notice.Notice,
	storage StorageStatus,
	home, secret, buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		coord:        coord,
		nav:          nav,
		notice:       ntc,
		storage:      storage,
		home:         home,
		secret:       secret,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSession()
	r.registerSystem()

	r.Mux.Handle("/swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			authsession agent API
//	@version		0.1.0
//	@description	Local agent that keeps an OpenID Connect session alive and hands out fresh bearer tokens.
//	@description
//	@description				Browser endpoints (/login, /register, /auth/callback) drive the authorization code flow.
//	@description				The /v1 endpoints are for local tools.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authsession
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8400
//	@BasePath					/
//
//	@schemes					http
//
//	@securityDefinitions.apikey	AgentSecret
//	@in							header
//	@name						Authorization
//	@description				Agent secret. Format: "Bearer {secret}". Only required when one is configured.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	login := &LoginHandler{Coordinator: r.coord, Home: r.home, Logger: r.logger}
	register := &LoginHandler{Coordinator: r.coord, Home: r.home, Logger: r.logger, Register: true}
	callback := &CallbackHandler{Coordinator: r.coord}

	r.Mux.Handle("GET /login",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)
	r.Mux.Handle("GET /register",
		httpx.Chain(register,
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)
	r.Mux.Handle("GET /auth/callback",
		httpx.Chain(callback,
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)

	// Logout is guarded like the /v1 API.
	r.Mux.Handle("POST /logout",
		httpx.Chain(&LogoutHandler{Coordinator: r.coord},
			httpx.RequireBearer(r.secret),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerSession() {
	awaitInit := r.awaitInitialization()

	r.Mux.Handle("GET /v1/token",
		httpx.Chain(&TokenHandler{Coordinator: r.coord},
			httpx.RequireBearer(r.secret),
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(&MeHandler{Coordinator: r.coord},
			httpx.RequireBearer(r.secret),
			awaitInit,
			httpx.RequireSession(r.coord),
			httpx.RateLimitBySubject(httpx.SessionLimit),
		),
	)

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(&SessionHandler{
			Coordinator: r.coord,
			Navigator:   r.nav,
			Notice:      r.notice,
			Storage:     r.storage,
		},
			httpx.RequireBearer(r.secret),
			awaitInit,
			httpx.RateLimitByIP(httpx.SessionLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

// awaitInitialization holds a request until the session has been resumed
// (or found absent), so answers reflect the stored session.
func (r *Router) awaitInitialization() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, err := r.coord.Initialize(req.Context()); err != nil {
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

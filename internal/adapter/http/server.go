package adapthttp

import (
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"weighttrack/internal/app"
	"weighttrack/internal/domain"
	"weighttrack/internal/metrics"
)

const sessionCookie = "session"

// OIDCConfig holds the single sign-on provider. Enabled is false when no
// issuer is configured.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Services are the application services the server routes to.
type Services struct {
	Entries  *app.EntryService
	Stats    *app.StatsService
	Charts   *app.ChartsService
	Transfer *app.TransferService
	Auth     *app.AuthService
	Backup   domain.BackupWriter
}

// Options tune the server.
type Options struct {
	WebDir       string
	PublicURL    string
	BackupSecret string
	SessionTTL   time.Duration
	// ForwardAuth trusts the Remote-User header set by a reverse proxy.
	ForwardAuth bool
	OIDC        OIDCConfig
	Metrics     *metrics.Metrics
	Log         *zap.SugaredLogger
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	entries  *app.EntryService
	stats    *app.StatsService
	charts   *app.ChartsService
	transfer *app.TransferService
	authSvc  *app.AuthService
	backup   domain.BackupWriter

	webDir       string
	publicURL    string
	backupSecret string
	sessionTTL   time.Duration
	forwardAuth  bool
	oidcConfig   OIDCConfig
	metrics      *metrics.Metrics
	log          *zap.SugaredLogger
}

// New creates a Server wired to the given application services.
func New(svc Services, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Server{
		entries:      svc.Entries,
		stats:        svc.Stats,
		charts:       svc.Charts,
		transfer:     svc.Transfer,
		authSvc:      svc.Auth,
		backup:       svc.Backup,
		webDir:       opts.WebDir,
		publicURL:    opts.PublicURL,
		backupSecret: opts.BackupSecret,
		sessionTTL:   opts.SessionTTL,
		forwardAuth:  opts.ForwardAuth,
		oidcConfig:   opts.OIDC,
		metrics:      opts.Metrics,
		log:          opts.Log,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(withNoCache)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.Get("/config", s.handleConfig)
			r.Get("/sso/login", s.handleSSOLogin)
			r.Get("/sso/callback", s.handleSSOCallback)
			r.With(s.authMiddleware).Get("/me", s.handleMe)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleUpsertEntry)
			r.Get("/stats", s.handleStats)
			r.Get("/chart", s.handleChart)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Get("/{id}", s.handleGetEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
		})

		r.Get("/admin/backup", s.handleBackup)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
		})
	})

	r.Handle("/*", spaFromDisk(s.webDir))

	return r
}

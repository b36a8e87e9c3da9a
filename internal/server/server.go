package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"authsystem/internal/auth"
	"authsystem/internal/config"
	"authsystem/internal/i18n"
	"authsystem/internal/oauth"
)

// OAuthProvider is the part of the Google bridge the handlers use.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.OAuthIdentity, error)
	auth.OAuthRefresher
}

// Pinger reports backing store health for /admin/health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Auth        *auth.Manager
	RateLimiter *auth.RateLimiter
	Google      OAuthProvider
	States      oauth.StateStore
	DB          Pinger
	Config      config.Config
	Logger      *slog.Logger

	cookies        auth.CookieSettings
	trustedProxies []net.IPNet
}

type Deps struct {
	Auth        *auth.Manager
	RateLimiter *auth.RateLimiter
	Google      OAuthProvider
	States      oauth.StateStore
	DB          Pinger
	Logger      *slog.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	states := deps.States
	if states == nil {
		states = oauth.NewMemoryStateStore()
	}
	return &Server{
		Auth:        deps.Auth,
		RateLimiter: deps.RateLimiter,
		Google:      deps.Google,
		States:      states,
		DB:          deps.DB,
		Config:      cfg,
		Logger:      logger,
		cookies: auth.CookieSettings{
			Secure: cfg.Production(),
			Domain: cfg.Domain,
			MaxAge: cfg.Tokens.RefreshTTL,
		},
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	formatter := &middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}
	r.Use(middleware.RequestLogger(formatter))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(i18n.Middleware)

	route := func(method, path string, h http.HandlerFunc) {
		r.With(s.authenticate(accessRoles(method, path))).Method(method, path, h)
	}

	route(http.MethodGet, "/health", s.handleHealth)
	route(http.MethodPost, "/register", s.handleRegister)
	route(http.MethodPost, "/login", s.handleLogin)
	route(http.MethodPost, "/verify", s.handleVerify)
	route(http.MethodGet, "/refresh-token", s.handleRefreshToken)
	route(http.MethodPost, "/logout", s.handleLogout)
	route(http.MethodPost, "/forgot-password", s.handleForgotPassword)
	route(http.MethodPost, "/reset-password", s.handleResetPassword)

	route(http.MethodGet, "/profile", s.handleProfile)
	route(http.MethodGet, "/me", s.handleProfile)

	route(http.MethodGet, "/2fa/enable", s.handleTwoFactorEnable)
	route(http.MethodPost, "/2fa/verify", s.handleTwoFactorVerify)
	route(http.MethodPost, "/2fa/validate", s.handleTwoFactorValidate)
	route(http.MethodPost, "/2fa/validate-backup", s.handleTwoFactorValidateBackup)
	route(http.MethodPost, "/2fa/disable", s.handleTwoFactorDisable)
	route(http.MethodPost, "/2fa/disable-2fa-send-otp", s.handleTwoFactorDisableSendOTP)
	route(http.MethodPost, "/2fa/disable-2fa-verify-otp", s.handleTwoFactorDisableVerifyOTP)
	route(http.MethodPost, "/2fa/regenerate-backup-codes-email", s.handleRegenerateBackupCodesEmail)
	route(http.MethodPost, "/2fa/regenerate-backup-codes-google-send-otp", s.handleRegenerateBackupCodesGoogleSendOTP)
	route(http.MethodPost, "/2fa/regenerate-backup-codes-google", s.handleRegenerateBackupCodesGoogle)

	route(http.MethodGet, "/auth/google", s.handleGoogleStart)
	route(http.MethodGet, "/auth/google/callback", s.handleGoogleCallback)
	route(http.MethodGet, "/auth/google/refresh-token", s.handleGoogleRefreshToken)

	route(http.MethodGet, "/admin/health", s.handleAdminHealth)
	route(http.MethodGet, "/admin/users", s.handleAdminListUsers)
	route(http.MethodGet, "/admin/users/{id}", s.handleAdminGetUser)
	route(http.MethodGet, "/admin/users/{id}/audit", s.handleAdminUserAudit)

	return r
}

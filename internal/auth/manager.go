package auth

import (
	"context"
	"log/slog"
	"time"
)

type EmailKind string

const (
	EmailVerification          EmailKind = "verification"
	EmailPasswordReset         EmailKind = "password_reset"
	EmailDisableTwoFactor      EmailKind = "disable_two_factor"
	EmailRegenerateBackupCodes EmailKind = "regenerate_backup_codes"
)

// Email is an outgoing notification. Code and Link are mutually exclusive
// depending on Kind.
type Email struct {
	Kind EmailKind
	To   string
	Name string
	Code string
	Link string
	TTL  time.Duration
}

// Mailer queues an email for delivery. Implementations must not block on
// the SMTP round trip and must swallow (and log) delivery failures.
type Mailer interface {
	Enqueue(ctx context.Context, e Email)
}

// ClientMeta describes the caller of a sign-in for login stamping and audit.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type Settings struct {
	VerificationCodeTTL time.Duration
	OTPTTL              time.Duration
	ResetTokenTTL       time.Duration
	PendingTOTPTTL      time.Duration
	FrontendURL         string
}

// Session is the result of a sign-in step. When TwoFactorPending is set,
// AccessToken is a pre-auth token and no refresh session exists yet.
type Session struct {
	User             *User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	TwoFactorPending bool
}

// Manager drives registration, sign-in, two-factor and refresh flows on top
// of a Store. All cross-request state lives in the Store.
type Manager struct {
	Store    Store
	Tokens   *TokenCodec
	Hasher   PasswordHasher
	TOTP     TOTPVerifier
	Mailer   Mailer
	Audit    *AuditLogger
	Settings Settings
	Logger   *slog.Logger

	now func() time.Time
}

func NewManager(store Store, tokens *TokenCodec, hasher PasswordHasher, totp TOTPVerifier, mailer Mailer, settings Settings) *Manager {
	return &Manager{
		Store:    store,
		Tokens:   tokens,
		Hasher:   hasher,
		TOTP:     totp,
		Mailer:   mailer,
		Settings: settings,
		Logger:   slog.Default(),
		now:      time.Now,
	}
}

// issueSession stamps the login and replaces the user's refresh session.
func (m *Manager) issueSession(ctx context.Context, u *User, method string, meta ClientMeta) (*Session, error) {
	now := m.now()
	info := LoginInfo{Method: method, IP: meta.IP, UserAgent: meta.UserAgent, At: now}
	if err := m.Store.RecordLogin(ctx, u.ID, info); err != nil {
		return nil, InternalError("record login", err)
	}
	u.LastLogin = &now
	u.LastLoginMethod = &method

	access, err := m.Tokens.IssueAccess(u)
	if err != nil {
		return nil, InternalError("issue access token", err)
	}
	refresh, err := m.Tokens.IssueRefresh(u)
	if err != nil {
		return nil, InternalError("issue refresh token", err)
	}
	if err := m.Store.UpsertRefreshToken(ctx, RefreshToken{
		UserID:    u.ID,
		TokenHash: HashString(refresh.Token),
		JTI:       refresh.JTI,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return nil, InternalError("store refresh token", err)
	}

	m.audit(ctx, AuditEvent{EventType: AuditLogin, UserID: u.ID, IP: meta.IP, UserAgent: meta.UserAgent,
		Meta: map[string]interface{}{"method": method}})

	return &Session{
		User:             u,
		AccessToken:      access,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (m *Manager) preAuthSession(u *User) (*Session, error) {
	token, err := m.Tokens.IssuePreAuth(u)
	if err != nil {
		return nil, InternalError("issue pre-auth token", err)
	}
	return &Session{User: u, AccessToken: token, TwoFactorPending: true}, nil
}

func (m *Manager) loadUser(ctx context.Context, userID string) (*User, error) {
	u, err := m.Store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, InternalError("load user", err)
	}
	if u == nil {
		return nil, errUserNotFound
	}
	return u, nil
}

func (m *Manager) notify(ctx context.Context, e Email) {
	if m.Mailer == nil {
		return
	}
	m.Mailer.Enqueue(ctx, e)
}

func (m *Manager) audit(ctx context.Context, e AuditEvent) {
	if err := m.Audit.Log(ctx, e); err != nil {
		m.logger().Warn("audit: write failed", "event", e.EventType, "err", err)
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func expired(at *time.Time, now time.Time) bool {
	return at == nil || now.After(*at)
}

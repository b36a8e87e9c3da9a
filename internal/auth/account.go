package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Registration is returned once per new account. QRCodeDataURL provisions
// the pending TOTP secret; enrollment is offered but not required.
type Registration struct {
	User          *User
	AccessToken   string
	QRCodeDataURL string
}

func (m *Manager) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}

	existing, err := m.Store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, InternalError("lookup email", err)
	}
	if existing != nil {
		if existing.UsesOAuth() {
			return nil, errAccountUsesOAuth
		}
		return nil, errEmailExists
	}

	hash, err := m.Hasher.Hash(in.Password)
	if err != nil {
		return nil, InternalError("hash password", err)
	}
	code, err := randomSixDigitCode()
	if err != nil {
		return nil, InternalError("generate verification code", err)
	}
	enrollment, err := m.TOTP.Generate(in.Email)
	if err != nil {
		return nil, InternalError("generate totp secret", err)
	}

	now := m.now()
	u, err := m.Store.CreateUser(ctx, NewUser{
		Name:                   in.Name,
		Email:                  in.Email,
		PasswordHash:           hash,
		VerificationCode:       HashString(code),
		VerificationCodeExpiry: now.Add(m.Settings.VerificationCodeTTL),
		TmpTwoFactorSecret:     enrollment.Secret,
		TmpTwoFactorExpiry:     now.Add(m.Settings.PendingTOTPTTL),
	})
	if errors.Is(err, ErrEmailTaken) {
		return nil, errEmailExists
	}
	if err != nil {
		return nil, InternalError("create user", err)
	}

	access, err := m.Tokens.IssueAccess(u)
	if err != nil {
		return nil, InternalError("issue access token", err)
	}

	m.notify(ctx, Email{
		Kind: EmailVerification,
		To:   u.Email,
		Name: u.Name,
		Code: code,
		TTL:  m.Settings.VerificationCodeTTL,
	})

	return &Registration{User: u, AccessToken: access, QRCodeDataURL: enrollment.QRDataURL}, nil
}

// Login checks email and password. Accounts with two-factor enabled get a
// pre-auth session that only the challenge endpoints accept.
func (m *Manager) Login(ctx context.Context, in LoginInput, meta ClientMeta) (*Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}

	u, err := m.Store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, InternalError("lookup email", err)
	}
	if u == nil {
		return nil, errInvalidCredentials
	}
	if !u.HasPassword() {
		if u.UsesOAuth() {
			return nil, errUseOAuth
		}
		return nil, errInvalidCredentials
	}
	if !m.Hasher.Compare(*u.PasswordHash, in.Password) {
		return nil, errInvalidCredentials
	}

	if u.TwoFactorEnabled {
		return m.preAuthSession(u)
	}
	return m.issueSession(ctx, u, LoginMethodEmail, meta)
}

// VerifyEmail redeems the emailed code for the account named by the
// registration token, activating it and signing it in.
func (m *Manager) VerifyEmail(ctx context.Context, in VerifyEmailInput, meta ClientMeta) (*Session, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	claims, err := m.Tokens.Verify(in.Token, TokenAccess)
	if err != nil {
		return nil, errInvalidToken
	}
	u, err := m.Store.FindUserByID(ctx, claims.UserID())
	if err != nil {
		return nil, InternalError("load user", err)
	}
	if u == nil || u.Email != claims.Email {
		return nil, errInvalidToken
	}

	now := m.now()
	if !hashMatches(u.VerificationCode, in.Code) {
		return nil, errInvalidCode
	}
	if expired(u.VerificationCodeExpiry, now) {
		return nil, errCodeExpired
	}

	ok, err := m.Store.VerifyEmail(ctx, u.ID, HashString(in.Code), now)
	if err != nil {
		return nil, InternalError("verify email", err)
	}
	if !ok {
		return nil, errInvalidCode
	}
	u.IsActive = true
	u.VerificationCode = nil
	u.VerificationCodeExpiry = nil
	m.audit(ctx, AuditEvent{EventType: AuditEmailVerified, UserID: u.ID, IP: meta.IP, UserAgent: meta.UserAgent})

	if u.TwoFactorEnabled {
		return m.preAuthSession(u)
	}
	return m.issueSession(ctx, u, LoginMethodEmail, meta)
}

// ForgotPassword emails a reset link when the address belongs to a password
// account. It reports success either way.
func (m *Manager) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := Validate(in); err != nil {
		return err
	}

	u, err := m.Store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return InternalError("lookup email", err)
	}
	if u == nil || !u.HasPassword() {
		return nil
	}

	token, err := randomToken(32)
	if err != nil {
		return InternalError("generate reset token", err)
	}
	if err := m.Store.SetPasswordReset(ctx, u.ID, HashString(token), m.now().Add(m.Settings.ResetTokenTTL)); err != nil {
		return InternalError("store reset token", err)
	}

	link := strings.TrimRight(m.Settings.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	m.notify(ctx, Email{
		Kind: EmailPasswordReset,
		To:   u.Email,
		Name: u.Name,
		Link: link,
		TTL:  m.Settings.ResetTokenTTL,
	})
	return nil
}

func (m *Manager) ResetPassword(ctx context.Context, in ResetPasswordInput, meta ClientMeta) error {
	if err := Validate(in); err != nil {
		return err
	}

	u, err := m.Store.FindUserByResetToken(ctx, HashString(in.Token))
	if err != nil {
		return InternalError("lookup reset token", err)
	}
	if u == nil || expired(u.ResetPasswordExpiry, m.now()) {
		return errInvalidResetToken
	}

	hash, err := m.Hasher.Hash(in.Password)
	if err != nil {
		return InternalError("hash password", err)
	}
	reset, err := m.Store.ResetPassword(ctx, u.ID, HashString(in.Token), hash)
	if err != nil {
		return InternalError("reset password", err)
	}
	if !reset {
		return errInvalidResetToken
	}
	m.audit(ctx, AuditEvent{EventType: AuditPasswordReset, UserID: u.ID, IP: meta.IP, UserAgent: meta.UserAgent})
	return nil
}

func (m *Manager) Profile(ctx context.Context, userID string) (*User, error) {
	return m.loadUser(ctx, userID)
}

func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return nil, InternalError("list users", err)
	}
	return users, nil
}

func (m *Manager) GetUser(ctx context.Context, id string) (*User, error) {
	return m.loadUser(ctx, id)
}

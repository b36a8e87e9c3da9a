package auth

import (
	"context"
	"time"
)

// Enrollment is a pending TOTP secret handed to the user for scanning.
type Enrollment struct {
	UserID        string
	Secret        string
	OTPAuthURL    string
	QRCodeDataURL string
}

// EnableTwoFactor starts (or restarts) enrollment by overwriting the pending
// secret. The committed secret and the enabled flag are left alone.
func (m *Manager) EnableTwoFactor(ctx context.Context, userID string) (*Enrollment, error) {
	u, err := m.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollment, err := m.TOTP.Generate(u.Email)
	if err != nil {
		return nil, InternalError("generate totp secret", err)
	}
	expires := m.now().Add(m.Settings.PendingTOTPTTL)
	if err := m.Store.SetPendingTwoFactorSecret(ctx, u.ID, enrollment.Secret, expires); err != nil {
		return nil, InternalError("store pending secret", err)
	}

	return &Enrollment{
		UserID:        u.ID,
		Secret:        enrollment.Secret,
		OTPAuthURL:    enrollment.OTPAuthURL,
		QRCodeDataURL: enrollment.QRDataURL,
	}, nil
}

// VerifyTwoFactor checks a code against the pending secret and, on success,
// commits it and returns the only copy of the new backup codes.
func (m *Manager) VerifyTwoFactor(ctx context.Context, in VerifyTwoFactorInput) ([]string, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	u, err := m.loadUser(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if u.TmpTwoFactorSecret == nil || *u.TmpTwoFactorSecret == "" {
		return nil, errTwoFactorNotPending
	}
	if u.TmpTwoFactorExpiry != nil && m.now().After(*u.TmpTwoFactorExpiry) {
		return nil, errTwoFactorExpired
	}
	secret := *u.TmpTwoFactorSecret
	if !m.TOTP.Verify(secret, in.Code) {
		return nil, errInvalidCode
	}

	codes, err := GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, InternalError("generate backup codes", err)
	}
	promoted, err := m.Store.EnableTwoFactor(ctx, u.ID, secret, hashBackupCodes(u.ID, codes))
	if err != nil {
		return nil, InternalError("enable two-factor", err)
	}
	if !promoted {
		return nil, errInvalidCode
	}

	m.audit(ctx, AuditEvent{EventType: AuditTwoFactorEnabled, UserID: u.ID})
	return codes, nil
}

// ValidateTwoFactor completes a pre-auth sign-in with a TOTP code against
// the committed secret.
func (m *Manager) ValidateTwoFactor(ctx context.Context, userID string, in CodeInput, meta ClientMeta) (*Session, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !m.TOTP.Verify(*u.TwoFactorSecret, in.Code) {
		return nil, errInvalidCode
	}
	return m.issueSession(ctx, u, LoginMethodTOTP, meta)
}

// ValidateBackupCode completes a pre-auth sign-in by burning a backup code.
// A wrong code and a used code fail identically.
func (m *Manager) ValidateBackupCode(ctx context.Context, userID string, in BackupCodeInput, meta ClientMeta) (*Session, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	code, ok := NormalizeBackupCode(in.Code)
	if !ok {
		return nil, errInvalidBackupCode
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	consumed, err := m.Store.ConsumeBackupCode(ctx, u.ID, HashBackupCode(u.ID, code))
	if err != nil {
		return nil, InternalError("consume backup code", err)
	}
	if !consumed {
		return nil, errInvalidBackupCode
	}
	m.audit(ctx, AuditEvent{EventType: AuditBackupCodeUsed, UserID: u.ID, IP: meta.IP, UserAgent: meta.UserAgent})
	return m.issueSession(ctx, u, LoginMethodBackup, meta)
}

// DisableTwoFactor turns two-factor off after a password check.
func (m *Manager) DisableTwoFactor(ctx context.Context, userID string, in PasswordInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.checkPassword(u, in.Password); err != nil {
		return err
	}
	return m.disableTwoFactor(ctx, u)
}

// SendDisableTwoFactorOTP emails a one-time code for accounts that cannot
// confirm with a password.
func (m *Manager) SendDisableTwoFactorOTP(ctx context.Context, userID string) error {
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return err
	}
	code, err := randomSixDigitCode()
	if err != nil {
		return InternalError("generate otp", err)
	}
	if err := m.Store.SetDisableOTP(ctx, u.ID, HashString(code), m.now().Add(m.Settings.OTPTTL)); err != nil {
		return InternalError("store disable otp", err)
	}
	m.notify(ctx, Email{Kind: EmailDisableTwoFactor, To: u.Email, Name: u.Name, Code: code, TTL: m.Settings.OTPTTL})
	return nil
}

func (m *Manager) DisableTwoFactorWithOTP(ctx context.Context, userID string, in OTPInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.checkOTP(u.DisableOTP, u.DisableOTPExpiry, in.OTP); err != nil {
		return err
	}
	return m.disableTwoFactor(ctx, u)
}

// RegenerateBackupCodes replaces the whole batch after password and TOTP
// re-proof. The old codes stay valid until the new batch is committed.
func (m *Manager) RegenerateBackupCodes(ctx context.Context, userID string, in RegenerateInput) ([]string, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.checkPassword(u, in.Password); err != nil {
		return nil, err
	}
	if !m.TOTP.Verify(*u.TwoFactorSecret, in.TOTP) {
		return nil, errInvalidTOTP
	}
	return m.replaceBackupCodes(ctx, u)
}

func (m *Manager) SendRegenerateBackupCodesOTP(ctx context.Context, userID string) error {
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return err
	}
	code, err := randomSixDigitCode()
	if err != nil {
		return InternalError("generate otp", err)
	}
	if err := m.Store.SetRegenerateOTP(ctx, u.ID, HashString(code), m.now().Add(m.Settings.OTPTTL)); err != nil {
		return InternalError("store regenerate otp", err)
	}
	m.notify(ctx, Email{Kind: EmailRegenerateBackupCodes, To: u.Email, Name: u.Name, Code: code, TTL: m.Settings.OTPTTL})
	return nil
}

// RegenerateBackupCodesWithOTP is the variant for accounts without a
// password: an emailed OTP stands in for it.
func (m *Manager) RegenerateBackupCodesWithOTP(ctx context.Context, userID string, in RegenerateWithOTPInput) ([]string, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	u, err := m.enabledUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := m.checkOTP(u.RegenerateOTP, u.RegenerateOTPExpiry, in.OTP); err != nil {
		return nil, err
	}
	if !m.TOTP.Verify(*u.TwoFactorSecret, in.TOTP) {
		return nil, errInvalidTOTP
	}
	return m.replaceBackupCodes(ctx, u)
}

func (m *Manager) replaceBackupCodes(ctx context.Context, u *User) ([]string, error) {
	codes, err := GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, InternalError("generate backup codes", err)
	}
	if err := m.Store.ReplaceBackupCodes(ctx, u.ID, hashBackupCodes(u.ID, codes)); err != nil {
		return nil, InternalError("replace backup codes", err)
	}
	m.audit(ctx, AuditEvent{EventType: AuditBackupCodesReset, UserID: u.ID})
	return codes, nil
}

func (m *Manager) disableTwoFactor(ctx context.Context, u *User) error {
	if err := m.Store.DisableTwoFactor(ctx, u.ID); err != nil {
		return InternalError("disable two-factor", err)
	}
	m.audit(ctx, AuditEvent{EventType: AuditTwoFactorDisabled, UserID: u.ID})
	return nil
}

func (m *Manager) enabledUser(ctx context.Context, userID string) (*User, error) {
	u, err := m.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.TwoFactorEnabled || u.TwoFactorSecret == nil {
		return nil, errTwoFactorNotEnabled
	}
	return u, nil
}

func (m *Manager) checkPassword(u *User, password string) error {
	if !u.HasPassword() {
		return errPasswordNotSet
	}
	if !m.Hasher.Compare(*u.PasswordHash, password) {
		return errInvalidPassword
	}
	return nil
}

func (m *Manager) checkOTP(stored *string, expiry *time.Time, presented string) error {
	if stored == nil || *stored == "" {
		return errOTPRequired
	}
	if !hashMatches(stored, presented) {
		return errInvalidCode
	}
	if expired(expiry, m.now()) {
		return errCodeExpired
	}
	return nil
}

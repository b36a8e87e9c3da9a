package auth

import (
	"context"
	"errors"
	"time"
)

// ErrEmailTaken is returned by CreateUser when the unique email constraint fires.
var ErrEmailTaken = errors.New("email already registered")

// Store is the Credential Store. Lookups return (nil, nil) when nothing
// matches. Methods documented as atomic must be a single conditional
// statement or one transaction.
type Store interface {
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByResetToken(ctx context.Context, tokenHash string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// VerifyEmail activates the account, clears the code and stamps
	// last_login, only while the stored code hash still equals codeHash.
	VerifyEmail(ctx context.Context, userID, codeHash string, at time.Time) (bool, error)
	RecordLogin(ctx context.Context, userID string, info LoginInfo) error

	SetPasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error
	// ResetPassword stores the new hash, clears the reset token and drops the
	// refresh session, atomically, only while the stored token hash still
	// equals tokenHash.
	ResetPassword(ctx context.Context, userID, tokenHash, passwordHash string) (bool, error)

	SetPendingTwoFactorSecret(ctx context.Context, userID, secret string, expires time.Time) error
	// EnableTwoFactor promotes the pending secret (only if it still equals
	// secret), flips the flag and replaces the backup codes, atomically.
	EnableTwoFactor(ctx context.Context, userID, secret string, codeHashes []string) (bool, error)
	// DisableTwoFactor clears the flag, both secrets, the disable OTP and all
	// backup codes, atomically.
	DisableTwoFactor(ctx context.Context, userID string) error
	SetDisableOTP(ctx context.Context, userID, otpHash string, expires time.Time) error
	SetRegenerateOTP(ctx context.Context, userID, otpHash string, expires time.Time) error

	// ConsumeBackupCode marks an unused code used and reports whether this
	// call was the one that consumed it.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	// ReplaceBackupCodes deletes every code of the user, inserts the new batch
	// and clears the regenerate OTP, atomically.
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error

	// UpsertOAuthUser links (or creates and activates) the account matching
	// the provider subject, or failing that the identity's email, and stores
	// the provider tokens. A linked account keeps its email.
	UpsertOAuthUser(ctx context.Context, id OAuthIdentity) (*User, error)
	UpdateOAuthTokens(ctx context.Context, userID string, id OAuthIdentity) error
	// ClearOAuthSession nulls the provider tokens and deletes the refresh
	// session, atomically.
	ClearOAuthSession(ctx context.Context, userID string) error

	UpsertRefreshToken(ctx context.Context, t RefreshToken) error
	FindRefreshToken(ctx context.Context, jti string) (*RefreshToken, error)
	// RotateRefreshToken replaces the row only while it still carries oldJTI.
	RotateRefreshToken(ctx context.Context, oldJTI string, next RefreshToken) (bool, error)
	DeleteRefreshToken(ctx context.Context, jti string) (bool, error)
	RevokeRefreshSessions(ctx context.Context, userID string) error
}

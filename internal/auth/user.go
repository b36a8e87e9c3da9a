package auth

import "time"

const (
	LoginMethodEmail  = "email"
	LoginMethodGoogle = "google"
	LoginMethodTOTP   = "totp"
	LoginMethodBackup = "backup_code"

	ProviderGoogle = "google"
)

// User is the credential record. Codes, OTPs and reset tokens are stored
// as SHA-256 hashes, never in the clear.
type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     *string
	IsActive         bool
	IsSuperUser      bool
	RegistrationDate time.Time
	LastLogin        *time.Time
	LastLoginMethod  *string
	LastIP           *string
	LastBrowser      *string

	VerificationCode       *string
	VerificationCodeExpiry *time.Time
	ResetPasswordToken     *string
	ResetPasswordExpiry    *time.Time

	OAuthProvider       *string
	OAuthID             *string
	OAuthAccessToken    *string
	OAuthRefreshToken   *string
	OAuthTokenExpiresAt *time.Time

	TwoFactorEnabled    bool
	TwoFactorSecret     *string
	TmpTwoFactorSecret  *string
	TmpTwoFactorExpiry  *time.Time
	DisableOTP          *string
	DisableOTPExpiry    *time.Time
	RegenerateOTP       *string
	RegenerateOTPExpiry *time.Time
}

// NewUser carries the columns written at registration.
type NewUser struct {
	Name                   string
	Email                  string
	PasswordHash           string
	VerificationCode       string
	VerificationCodeExpiry time.Time
	TmpTwoFactorSecret     string
	TmpTwoFactorExpiry     time.Time
}

// RefreshToken is the single stored refresh session of a user.
type RefreshToken struct {
	ID        int64
	UserID    string
	TokenHash string
	JTI       string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginInfo is stamped on the user row after a completed sign-in.
type LoginInfo struct {
	Method    string
	IP        string
	UserAgent string
	At        time.Time
}

// OAuthIdentity is what the OAuth bridge hands back after a code or
// refresh-token exchange.
type OAuthIdentity struct {
	Provider     string
	Subject      string
	Email        string
	Name         string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// PublicUser is the JSON view of a user returned to clients.
type PublicUser struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	IsActive           bool       `json:"is_active"`
	IsSuperUser        bool       `json:"is_super_user"`
	RegistrationDate   time.Time  `json:"registration_date"`
	LastLogin          *time.Time `json:"last_login"`
	LastLoginMethod    *string    `json:"last_login_method"`
	OAuthProvider      *string    `json:"oauth_provider"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		IsActive:           u.IsActive,
		IsSuperUser:        u.IsSuperUser,
		RegistrationDate:   u.RegistrationDate,
		LastLogin:          u.LastLogin,
		LastLoginMethod:    u.LastLoginMethod,
		OAuthProvider:      u.OAuthProvider,
		IsTwoFactorEnabled: u.TwoFactorEnabled,
	}
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) UsesOAuth() bool {
	return u.OAuthProvider != nil && *u.OAuthProvider != ""
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalid
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalid:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUseOAuth            = "USE_OAUTH_LOGIN"
	CodeEmailExists         = "EMAIL_ALREADY_EXISTS"
	CodeAccountUsesOAuth    = "ACCOUNT_USES_OAUTH"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInvalidRefreshToken = "INVALID_OR_EXPIRED_REFRESH_TOKEN"
	CodeInvalidResetToken   = "INVALID_OR_EXPIRED_RESET_TOKEN"
	CodeInvalidCode         = "INVALID_CODE"
	CodeCodeExpired         = "CODE_EXPIRED"
	CodeOTPRequired         = "OTP_REQUIRED"
	CodeInvalidBackupCode   = "INVALID_OR_USED_BACKUP_CODE"
	CodeInvalidPassword     = "INVALID_PASSWORD"
	CodePasswordNotSet      = "PASSWORD_NOT_SET"
	CodeInvalidTOTP         = "INVALID_TOTP"
	CodeTwoFactorNotEnabled = "TWO_FACTOR_NOT_ENABLED"
	CodeTwoFactorNotPending = "TWO_FACTOR_NOT_PENDING"
	CodeTwoFactorExpired    = "TWO_FACTOR_SETUP_EXPIRED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeEmailRequired       = "EMAIL_REQUIRED"
	CodeOAuthNotLinked      = "OAUTH_NOT_LINKED"
	CodeOAuthRefreshFailed  = "OAUTH_REFRESH_FAILED"
	CodeForbidden           = "FORBIDDEN"
)

// Error is the error type returned by Manager operations.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: "Invalid request data", Fields: fields}
}

func InvalidError(code, message string) *Error { return newError(KindInvalid, code, message) }

func AuthError(code, message string) *Error { return newError(KindAuth, code, message) }

func ForbiddenError(message string) *Error { return newError(KindForbidden, CodeForbidden, message) }

func NotFoundError(code, message string) *Error { return newError(KindNotFound, code, message) }

func ConflictError(code, message string) *Error { return newError(KindConflict, code, message) }

// InternalError wraps an unexpected store or crypto failure. The message
// shown to clients stays generic.
func InternalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// AsError extracts an *Error, turning anything else into an internal error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return InternalError("unexpected", err)
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

var (
	errUserNotFound        = NotFoundError(CodeUserNotFound, "User not found")
	errInvalidCredentials  = AuthError(CodeInvalidCredentials, "Invalid credentials")
	errInvalidToken        = AuthError(CodeInvalidToken, "Invalid or expired token")
	errInvalidRefreshToken = AuthError(CodeInvalidRefreshToken, "Invalid or expired refresh token")
	errInvalidCode         = InvalidError(CodeInvalidCode, "Invalid code")
	errCodeExpired         = InvalidError(CodeCodeExpired, "Code expired")
	errInvalidBackupCode   = InvalidError(CodeInvalidBackupCode, "Invalid or already used backup code")
	errInvalidPassword     = AuthError(CodeInvalidPassword, "Invalid password")
	errPasswordNotSet      = InvalidError(CodePasswordNotSet, "This account has no password; use the email OTP flow instead")
	errInvalidTOTP         = InvalidError(CodeInvalidTOTP, "Invalid TOTP code")
	errTwoFactorNotEnabled = InvalidError(CodeTwoFactorNotEnabled, "Two-factor authentication is not enabled")
	errTwoFactorNotPending = InvalidError(CodeTwoFactorNotPending, "Two-factor setup has not been started")
	errTwoFactorExpired    = InvalidError(CodeTwoFactorExpired, "Two-factor setup expired, start again")
	errOTPRequired         = InvalidError(CodeOTPRequired, "Request a one-time code first")
	errInvalidResetToken   = InvalidError(CodeInvalidResetToken, "Invalid or expired reset token")
	errUseOAuth            = InvalidError(CodeUseOAuth, "This account signs in with Google")
	errAccountUsesOAuth    = ConflictError(CodeAccountUsesOAuth, "An account with this email uses Google sign-in")
	errEmailExists         = ConflictError(CodeEmailExists, "A user with this email already exists")
	errEmailRequired       = InvalidError(CodeEmailRequired, "The provider did not return an email address")
	errOAuthNotLinked      = InvalidError(CodeOAuthNotLinked, "This account is not linked to Google")
)

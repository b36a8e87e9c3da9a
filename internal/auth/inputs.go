package auth

// Request payloads accepted by the Manager. The JSON names double as the
// field keys of VALIDATION_ERROR responses.

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailInput struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required,sixdigits"`
}

type VerifyTwoFactorInput struct {
	ID   string `json:"id" validate:"required,uuid"`
	Code string `json:"code" validate:"required,sixdigits"`
}

type CodeInput struct {
	Code string `json:"code" validate:"required,sixdigits"`
}

type BackupCodeInput struct {
	Code string `json:"code" validate:"required,max=32"`
}

type PasswordInput struct {
	Password string `json:"password" validate:"required"`
}

type OTPInput struct {
	OTP string `json:"otp" validate:"required,sixdigits"`
}

type RegenerateInput struct {
	Password string `json:"password" validate:"required"`
	TOTP     string `json:"totp" validate:"required,sixdigits"`
}

type RegenerateWithOTPInput struct {
	OTP  string `json:"otp" validate:"required,sixdigits"`
	TOTP string `json:"totp" validate:"required,sixdigits"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type LogoutInput struct {
	Type string `json:"type" validate:"omitempty,oneof=email google"`
}

package auth

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpDigits = otp.DigitsSix
	totpPeriod = 30
	totpSkew   = 1
)

type TOTPVerifier interface {
	Verify(secret, code string) bool
	Generate(email string) (*TOTPEnrollment, error)
}

// TOTPEnrollment is a freshly generated secret with its provisioning data.
type TOTPEnrollment struct {
	Secret     string
	OTPAuthURL string
	QRDataURL  string
}

type TOTPService struct {
	Issuer string
	now    func() time.Time
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{Issuer: issuer, now: time.Now}
}

// Verify accepts codes from the current 30 s step and one step either side.
func (t *TOTPService) Verify(secret, code string) bool {
	if secret == "" || !sixDigitsRe.MatchString(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (t *TOTPService) Generate(email string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: email,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &TOTPEnrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRDataURL:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

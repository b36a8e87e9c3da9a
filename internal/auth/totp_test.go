package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPService_Generate(t *testing.T) {
	t.Parallel()

	svc := NewTOTPService("auth-system")
	enr, err := svc.Generate("alice@x.com")
	require.NoError(t, err)

	assert.NotEmpty(t, enr.Secret)
	assert.True(t, strings.HasPrefix(enr.QRDataURL, "data:image/png;base64,"))

	u, err := url.Parse(enr.OTPAuthURL)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "auth-system", u.Query().Get("issuer"))
	assert.Equal(t, "6", u.Query().Get("digits"))
	assert.Equal(t, "30", u.Query().Get("period"))
	assert.Contains(t, u.Path, "alice@x.com")
}

func TestTOTPService_VerifyWindow(t *testing.T) {
	t.Parallel()

	svc := NewTOTPService("auth-system")
	enr, err := svc.Generate("alice@x.com")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	svc.now = func() time.Time { return now }

	current, err := totp.GenerateCode(enr.Secret, now)
	require.NoError(t, err)
	previous, err := totp.GenerateCode(enr.Secret, now.Add(-30*time.Second))
	require.NoError(t, err)
	next, err := totp.GenerateCode(enr.Secret, now.Add(30*time.Second))
	require.NoError(t, err)
	stale, err := totp.GenerateCode(enr.Secret, now.Add(-90*time.Second))
	require.NoError(t, err)

	assert.True(t, svc.Verify(enr.Secret, current))
	assert.True(t, svc.Verify(enr.Secret, previous))
	assert.True(t, svc.Verify(enr.Secret, next))
	if stale != current && stale != previous && stale != next {
		assert.False(t, svc.Verify(enr.Secret, stale))
	}
}

func TestTOTPService_VerifyRejectsMalformed(t *testing.T) {
	t.Parallel()

	svc := NewTOTPService("auth-system")
	enr, err := svc.Generate("alice@x.com")
	require.NoError(t, err)

	assert.False(t, svc.Verify(enr.Secret, ""))
	assert.False(t, svc.Verify(enr.Secret, "12345"))
	assert.False(t, svc.Verify(enr.Secret, "abcdef"))
	assert.False(t, svc.Verify("", "123456"))
}

func TestTOTPService_OtherSecretFails(t *testing.T) {
	t.Parallel()

	svc := NewTOTPService("auth-system")
	first, err := svc.Generate("alice@x.com")
	require.NoError(t, err)
	second, err := svc.Generate("alice@x.com")
	require.NoError(t, err)

	now := time.Now()
	svc.now = func() time.Time { return now }
	code, err := totp.GenerateCode(first.Secret, now)
	require.NoError(t, err)

	matches := func(secret string) bool {
		for _, off := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
			c, _ := totp.GenerateCode(secret, now.Add(off))
			if c == code {
				return true
			}
		}
		return false
	}
	if !matches(second.Secret) {
		assert.False(t, svc.Verify(second.Secret, code))
	}
}

package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocale(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                      "en",
		"de-DE,de;q=0.9":        "de",
		"fr-FR, de;q=0.5":       "de",
		"FR":                    "en",
		"en-US,en;q=0.9,de;q=1": "en",
	}
	for header, want := range cases {
		assert.Equal(t, want, NormalizeLocale(header), header)
	}
}

func TestContextLocale(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultLocale, FromContext(context.Background()))
	assert.Equal(t, "de", FromContext(WithLocale(context.Background(), "de-AT")))

	var seen string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "de")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "de", seen)
}

func TestEmailsRenderValues(t *testing.T) {
	t.Parallel()

	v := VerificationEmail("en", "Alice", "123456", 60)
	assert.Equal(t, "Verify your email", v.Subject)
	assert.Contains(t, v.Text, "Hi Alice,")
	assert.Contains(t, v.Text, "123456")
	assert.Contains(t, v.HTML, "60 minutes")

	r := PasswordResetEmail("de", "", "http://app.test/reset-password?token=abc", 60)
	assert.Equal(t, "Passwort zurücksetzen", r.Subject)
	assert.Contains(t, r.Text, "Hallo zusammen,")
	assert.Contains(t, r.HTML, `href="http://app.test/reset-password?token=abc"`)

	d := DisableTwoFactorEmail("fr", "Bob", "654321", 10)
	assert.Contains(t, d.Subject, "disable two-factor")
	assert.Contains(t, d.Text, "654321")
	assert.NotContains(t, d.Text, "{")

	g := RegenerateBackupCodesEmail("de", "Bob", "111222", 10)
	assert.Contains(t, g.HTML, "<strong>111222</strong>")
}

func TestEmailsEscapeHTMLValues(t *testing.T) {
	t.Parallel()

	name := `<a href="http://evil.example/login">Your account is locked</a>`
	v := VerificationEmail("en", name, "123456", 60)
	assert.NotContains(t, v.HTML, "<a href")
	assert.Contains(t, v.HTML, "Hi &lt;a href=&#34;http://evil.example/login&#34;&gt;")
	assert.Contains(t, v.Text, "Hi "+name+",")

	r := PasswordResetEmail("en", "Alice", "http://app.test/reset-password?token=a&b", 60)
	assert.Contains(t, r.HTML, `href="http://app.test/reset-password?token=a&amp;b"`)
	assert.Contains(t, r.Text, "token=a&b")
}

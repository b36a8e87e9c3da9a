package auth

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refreshToken"

// CookieSettings scope the refresh cookie. Domain is left off the cookie for
// localhost so browsers accept it during development.
type CookieSettings struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

func (c CookieSettings) domain() string {
	if c.Domain == "" || c.Domain == "localhost" {
		return ""
	}
	return c.Domain
}

func SetRefreshCookie(w http.ResponseWriter, settings CookieSettings, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   settings.domain(),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(settings.MaxAge.Seconds()),
	})
}

func ClearRefreshCookie(w http.ResponseWriter, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   settings.domain(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RefreshCookie returns the presented refresh token or "".
func RefreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

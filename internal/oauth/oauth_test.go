package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"authsystem/internal/auth"
	"authsystem/internal/config"
)

func fakeGoogle(t *testing.T, verified bool) (*Google, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		resp := map[string]any{
			"access_token": "ga-" + r.Form.Get("grant_type"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if r.Form.Get("grant_type") == "authorization_code" {
			resp["refresh_token"] = "gr-1"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "1234",
			"email":          "gina@x.com",
			"email_verified": verified,
			"name":           "Gina",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogle(config.OAuthProvider{ClientID: "cid", ClientSecret: "secret", RedirectURL: "http://localhost/auth/google/callback"})
	g.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	g.userInfoURL = srv.URL + "/userinfo"
	return g, srv
}

func TestGoogle_AuthCodeURL(t *testing.T) {
	t.Parallel()

	g := NewGoogle(config.OAuthProvider{ClientID: "cid", ClientSecret: "secret", RedirectURL: "http://localhost/cb"})
	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogle_ExchangeAndRefresh(t *testing.T) {
	t.Parallel()
	g, _ := fakeGoogle(t, true)
	ctx := context.Background()

	id, err := g.Exchange(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, auth.ProviderGoogle, id.Provider)
	assert.Equal(t, "1234", id.Subject)
	assert.Equal(t, "gina@x.com", id.Email)
	assert.Equal(t, "ga-authorization_code", id.AccessToken)
	assert.Equal(t, "gr-1", id.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.Expiry, time.Minute)

	refreshed, err := g.Refresh(ctx, "gr-1")
	require.NoError(t, err)
	assert.Equal(t, "ga-refresh_token", refreshed.AccessToken)
	assert.Equal(t, "gina@x.com", refreshed.Email)
}

func TestGoogle_RejectsUnverifiedEmail(t *testing.T) {
	t.Parallel()
	g, _ := fakeGoogle(t, false)

	_, err := g.Exchange(context.Background(), "code-1")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestMemoryStateStore_SingleUse(t *testing.T) {
	t.Parallel()
	s := NewMemoryStateStore()
	ctx := context.Background()

	state, err := s.Issue(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Consume(ctx, state))
	assert.ErrorIs(t, s.Consume(ctx, state), ErrStateInvalid)
	assert.ErrorIs(t, s.Consume(ctx, "forged"), ErrStateInvalid)

	expired, err := s.Issue(ctx)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(StateTTL + time.Minute) }
	assert.ErrorIs(t, s.Consume(ctx, expired), ErrStateInvalid)
}

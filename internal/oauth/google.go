package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"authsystem/internal/auth"
	"authsystem/internal/config"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrEmailNotVerified = errors.New("provider email is not verified")

// Google exchanges authorization codes and refresh tokens with Google and
// resolves them to an identity.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
}

var _ auth.OAuthRefresher = (*Google)(nil)

func NewGoogle(cfg config.OAuthProvider) *Google {
	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// AuthCodeURL asks for offline access so the callback yields a refresh token.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code string) (*auth.OAuthIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return g.identity(ctx, token)
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (*auth.OAuthIdentity, error) {
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := g.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return g.identity(ctx, token)
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *Google) identity(ctx context.Context, token *oauth2.Token) (*auth.OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if u.Email != "" && !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &auth.OAuthIdentity{
		Provider:     auth.ProviderGoogle,
		Subject:      u.Sub,
		Email:        u.Email,
		Name:         u.Name,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

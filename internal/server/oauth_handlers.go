package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"authsystem/internal/auth"
	"authsystem/internal/oauth"
)

const oauthCallbackPath = "/auth/callback"

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.Google == nil {
		s.oauthErrorRedirect(w, r, "provider_unavailable")
		return
	}
	state, err := s.States.Issue(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "oauth start: persist state failed", "err", err)
		s.oauthErrorRedirect(w, r, "state_persist_failed")
		return
	}
	http.Redirect(w, r, s.Google.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.Google == nil {
		s.oauthErrorRedirect(w, r, "provider_unavailable")
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.Logger.InfoContext(ctx, "oauth callback: provider returned error", "error", e)
		s.oauthErrorRedirect(w, r, "access_denied")
		return
	}
	code := q.Get("code")
	if code == "" {
		s.oauthErrorRedirect(w, r, "missing_code")
		return
	}
	if err := s.States.Consume(ctx, q.Get("state")); err != nil {
		if !errors.Is(err, oauth.ErrStateInvalid) {
			s.Logger.ErrorContext(ctx, "oauth callback: state lookup failed", "err", err)
		}
		s.oauthErrorRedirect(w, r, "state_invalid")
		return
	}

	id, err := s.Google.Exchange(ctx, code)
	if err != nil {
		s.Logger.WarnContext(ctx, "oauth callback: token exchange failed", "err", err)
		s.oauthErrorRedirect(w, r, "token_exchange_failed")
		return
	}

	sess, err := s.Auth.CompleteOAuthLogin(ctx, *id, s.clientMeta(r))
	if err != nil {
		e := auth.AsError(err)
		if e.Kind == auth.KindInternal {
			s.Logger.ErrorContext(ctx, "oauth callback: sign-in failed", "err", err)
		}
		s.oauthErrorRedirect(w, r, strings.ToLower(e.Code))
		return
	}
	s.oauthSessionRedirect(w, r, sess)
}

// handleGoogleRefreshToken renews both the local session and the stored
// Google tokens, then hands the new access token to the frontend.
func (s *Server) handleGoogleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if s.Google == nil {
		s.oauthErrorRedirect(w, r, "provider_unavailable")
		return
	}
	raw := auth.RefreshCookie(r)
	if raw == "" {
		s.oauthErrorRedirect(w, r, strings.ToLower(auth.CodeInvalidRefreshToken))
		return
	}

	sess, err := s.Auth.RefreshOAuth(r.Context(), raw, s.Google, s.clientMeta(r))
	if err != nil {
		e := auth.AsError(err)
		if e.Kind == auth.KindInternal || e.Code == auth.CodeOAuthRefreshFailed {
			s.Logger.ErrorContext(r.Context(), "oauth refresh failed", "err", err)
		}
		if e.Kind == auth.KindAuth {
			auth.ClearRefreshCookie(w, s.cookies)
		}
		s.oauthErrorRedirect(w, r, strings.ToLower(e.Code))
		return
	}
	s.oauthSessionRedirect(w, r, sess)
}

func (s *Server) oauthSessionRedirect(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	v := url.Values{}
	v.Set("token", sess.AccessToken)
	v.Set("type", auth.LoginMethodGoogle)
	if sess.TwoFactorPending {
		v.Set("twoFactor", "true")
	} else if sess.RefreshToken != "" {
		auth.SetRefreshCookie(w, s.cookies, sess.RefreshToken)
	}
	http.Redirect(w, r, s.frontendURL(oauthCallbackPath)+"?"+v.Encode(), http.StatusFound)
}

func (s *Server) oauthErrorRedirect(w http.ResponseWriter, r *http.Request, code string) {
	v := url.Values{}
	v.Set("error", code)
	http.Redirect(w, r, s.frontendURL("/login")+"?"+v.Encode(), http.StatusFound)
}

func (s *Server) frontendURL(path string) string {
	return strings.TrimRight(s.Config.FrontendURL, "/") + path
}

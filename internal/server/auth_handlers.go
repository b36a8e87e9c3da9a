package server

import (
	"net/http"

	"authsystem/internal/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	lim, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip)
	s.logLimiterError(r, "register", err)
	if lim.Locked {
		s.writeTooManyRequests(w, "Too many signup attempts. Try again later.", lim.Retry)
		return
	}

	reg, err := s.Auth.Register(ctx, req)
	if err != nil {
		s.writeError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "User registered successfully. Check your email for the verification code.",
		"user":           reg.User.Public(),
		"accessToken":    reg.AccessToken,
		"qrcodeImageUrl": reg.QRCodeDataURL,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	meta := s.clientMeta(r)
	if s.RateLimiter.IsIPBanned(ctx, meta.IP) {
		s.writeTooManyRequests(w, "Too many failed logins. Try again later.", 0)
		return
	}

	sess, err := s.Auth.Login(ctx, req, meta)
	if err != nil {
		if auth.HasCode(err, auth.CodeInvalidCredentials) {
			s.logLimiterError(r, "login", s.RateLimiter.RegisterLoginFailure(ctx, meta.IP))
		}
		s.writeError(w, r, "login", err)
		return
	}
	s.RateLimiter.ResetLogin(ctx, meta.IP)

	s.writeSession(w, http.StatusOK, sess, map[string]interface{}{
		"type":               auth.LoginMethodEmail,
		"isTwoFactorEnabled": sess.User.TwoFactorEnabled,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyEmailInput
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	// The attempt counter is keyed by the email inside the registration
	// token; an unreadable token fails verification below anyway.
	var email string
	if claims, err := s.Auth.Tokens.Verify(req.Token, auth.TokenAccess); err == nil {
		email = claims.Email
	}
	if email != "" {
		lim, err := s.RateLimiter.RegisterVerifyAttempt(ctx, email)
		s.logLimiterError(r, "verify", err)
		if lim.Locked {
			s.writeTooManyRequests(w, "Too many verification attempts. Try again later.", lim.Retry)
			return
		}
	}

	sess, err := s.Auth.VerifyEmail(ctx, req, s.clientMeta(r))
	if err != nil {
		s.writeError(w, r, "verify", err)
		return
	}
	if email != "" {
		s.RateLimiter.ResetVerify(ctx, email)
	}

	s.writeSession(w, http.StatusOK, sess, map[string]interface{}{
		"message":            "Email verified successfully",
		"type":               auth.LoginMethodEmail,
		"isTwoFactorEnabled": sess.User.TwoFactorEnabled,
	})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	raw := auth.RefreshCookie(r)
	if raw == "" {
		writeMessage(w, http.StatusUnauthorized, auth.CodeInvalidRefreshToken, "Refresh token missing")
		return
	}

	sess, err := s.Auth.Refresh(r.Context(), raw, s.clientMeta(r))
	if err != nil {
		if auth.IsKind(err, auth.KindAuth) {
			auth.ClearRefreshCookie(w, s.cookies)
		}
		s.writeError(w, r, "refresh token", err)
		return
	}

	s.writeSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req auth.LogoutInput
	if !s.decode(w, r, &req) {
		return
	}
	if err := auth.Validate(req); err != nil {
		s.writeError(w, r, "logout", err)
		return
	}

	// The cookie goes away whatever happens to the stored session.
	auth.ClearRefreshCookie(w, s.cookies)

	ctx := r.Context()
	meta := s.clientMeta(r)
	if req.Type == auth.LoginMethodGoogle {
		claims := claimsFromContext(ctx)
		if err := s.Auth.LogoutOAuth(ctx, claims.UserID(), meta); err != nil {
			s.writeError(w, r, "logout", err)
			return
		}
	} else if raw := auth.RefreshCookie(r); raw != "" {
		if _, err := s.Auth.Logout(ctx, raw, meta); err != nil {
			s.writeError(w, r, "logout", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordInput
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	lim, err := s.RateLimiter.RegisterResetAttempt(ctx, req.Email, clientIP(r, s.trustedProxies))
	s.logLimiterError(r, "forgot password", err)
	if lim.Locked {
		s.writeTooManyRequests(w, "Too many reset requests. Try again later.", lim.Retry)
		return
	}

	if err := s.Auth.ForgotPassword(ctx, req); err != nil {
		s.writeError(w, r, "forgot password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, a reset link has been sent.",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordInput
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.Auth.ResetPassword(r.Context(), req, s.clientMeta(r)); err != nil {
		s.writeError(w, r, "reset password", err)
		return
	}
	auth.ClearRefreshCookie(w, s.cookies)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset. Please sign in again."})
}

// writeSession sends the access token and, once the sign-in is complete,
// the refresh cookie. A pending two-factor login gets neither cookie nor
// refresh session.
func (s *Server) writeSession(w http.ResponseWriter, status int, sess *auth.Session, extra map[string]interface{}) {
	body := map[string]interface{}{"accessToken": sess.AccessToken}
	for k, v := range extra {
		body[k] = v
	}
	if sess.TwoFactorPending {
		body["twoFactorPending"] = true
	} else if sess.RefreshToken != "" {
		auth.SetRefreshCookie(w, s.cookies, sess.RefreshToken)
	}
	writeJSON(w, status, body)
}

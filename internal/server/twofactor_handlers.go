package server

import (
	"net/http"

	"authsystem/internal/auth"
)

func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	enrollment, err := s.Auth.EnableTwoFactor(r.Context(), claims.UserID())
	if err != nil {
		s.writeError(w, r, "2fa enable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":             enrollment.UserID,
		"qrcodeImageUrl": enrollment.QRCodeDataURL,
		"secret":         enrollment.Secret,
	})
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyTwoFactorInput
	if !s.decode(w, r, &req) {
		return
	}
	if !s.checkTwoFactorLock(w, r, req.ID) {
		return
	}

	codes, err := s.Auth.VerifyTwoFactor(r.Context(), req)
	if err != nil {
		s.countTwoFactorFailure(r, req.ID, err)
		s.writeError(w, r, "2fa verify", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), req.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Two-factor authentication enabled",
		"rawCodes": codes,
	})
}

func (s *Server) handleTwoFactorValidate(w http.ResponseWriter, r *http.Request) {
	var req auth.CodeInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if !s.checkTwoFactorLock(w, r, userID) {
		return
	}

	sess, err := s.Auth.ValidateTwoFactor(r.Context(), userID, req, s.clientMeta(r))
	if err != nil {
		s.countTwoFactorFailure(r, userID, err)
		s.writeError(w, r, "2fa validate", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), userID)
	s.writeSession(w, http.StatusOK, sess, map[string]interface{}{"verified": true})
}

func (s *Server) handleTwoFactorValidateBackup(w http.ResponseWriter, r *http.Request) {
	var req auth.BackupCodeInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if !s.checkTwoFactorLock(w, r, userID) {
		return
	}

	sess, err := s.Auth.ValidateBackupCode(r.Context(), userID, req, s.clientMeta(r))
	if err != nil {
		s.countTwoFactorFailure(r, userID, err)
		s.writeError(w, r, "2fa validate backup", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), userID)
	s.writeSession(w, http.StatusOK, sess, map[string]interface{}{"verified": true})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if err := s.Auth.DisableTwoFactor(r.Context(), userID, req); err != nil {
		s.writeError(w, r, "2fa disable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}

func (s *Server) handleTwoFactorDisableSendOTP(w http.ResponseWriter, r *http.Request) {
	userID := claimsFromContext(r.Context()).UserID()
	s.sendOTP(w, r, "otp_cooldown:disable_2fa:"+userID, func() error {
		return s.Auth.SendDisableTwoFactorOTP(r.Context(), userID)
	})
}

func (s *Server) handleTwoFactorDisableVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.OTPInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if !s.checkTwoFactorLock(w, r, userID) {
		return
	}
	if err := s.Auth.DisableTwoFactorWithOTP(r.Context(), userID, req); err != nil {
		s.countTwoFactorFailure(r, userID, err)
		s.writeError(w, r, "2fa disable otp", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}

func (s *Server) handleRegenerateBackupCodesEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.RegenerateInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if !s.checkTwoFactorLock(w, r, userID) {
		return
	}
	codes, err := s.Auth.RegenerateBackupCodes(r.Context(), userID, req)
	if err != nil {
		s.countTwoFactorFailure(r, userID, err)
		s.writeError(w, r, "regenerate backup codes", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"rawCodes": codes})
}

func (s *Server) handleRegenerateBackupCodesGoogleSendOTP(w http.ResponseWriter, r *http.Request) {
	userID := claimsFromContext(r.Context()).UserID()
	s.sendOTP(w, r, "otp_cooldown:regenerate_2fa:"+userID, func() error {
		return s.Auth.SendRegenerateBackupCodesOTP(r.Context(), userID)
	})
}

func (s *Server) handleRegenerateBackupCodesGoogle(w http.ResponseWriter, r *http.Request) {
	var req auth.RegenerateWithOTPInput
	if !s.decode(w, r, &req) {
		return
	}
	userID := claimsFromContext(r.Context()).UserID()
	if !s.checkTwoFactorLock(w, r, userID) {
		return
	}
	codes, err := s.Auth.RegenerateBackupCodesWithOTP(r.Context(), userID, req)
	if err != nil {
		s.countTwoFactorFailure(r, userID, err)
		s.writeError(w, r, "regenerate backup codes otp", err)
		return
	}
	s.RateLimiter.Reset2FA(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"rawCodes": codes})
}

// sendOTP mails a one-time code unless the previous one went out less than
// a cooldown ago.
func (s *Server) sendOTP(w http.ResponseWriter, r *http.Request, cooldownKey string, send func() error) {
	ctx := r.Context()
	if ttl := s.RateLimiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
		s.writeTooManyRequests(w, "Please wait before requesting another code.", ttl)
		return
	}
	if err := send(); err != nil {
		s.writeError(w, r, "send otp", err)
		return
	}
	s.RateLimiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "A one-time code has been sent to your email",
		"cooldown": int64(auth.EmailCooldown.Seconds()),
	})
}

func (s *Server) checkTwoFactorLock(w http.ResponseWriter, r *http.Request, userID string) bool {
	lim, err := s.RateLimiter.TwoFactorLocked(r.Context(), userID)
	s.logLimiterError(r, "2fa", err)
	if lim.Locked {
		s.writeTooManyRequests(w, "Too many invalid codes. Try again later.", lim.Retry)
		return false
	}
	return true
}

func (s *Server) countTwoFactorFailure(r *http.Request, userID string, err error) {
	if !auth.HasCode(err, auth.CodeInvalidCode) && !auth.HasCode(err, auth.CodeInvalidBackupCode) &&
		!auth.HasCode(err, auth.CodeInvalidTOTP) {
		return
	}
	_, lerr := s.RateLimiter.Register2FAFailure(r.Context(), userID)
	s.logLimiterError(r, "2fa", lerr)
}

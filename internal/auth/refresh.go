package auth

import (
	"context"
)

// OAuthRefresher exchanges a provider refresh token for fresh provider
// tokens and the identity they belong to.
type OAuthRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*OAuthIdentity, error)
}

// Refresh validates the presented refresh token against its stored session
// and rotates it. The returned session carries the new refresh token.
func (m *Manager) Refresh(ctx context.Context, raw string, meta ClientMeta) (*Session, error) {
	stored, u, err := m.checkRefresh(ctx, raw, meta)
	if err != nil {
		return nil, err
	}
	return m.rotate(ctx, stored, u)
}

// RefreshOAuth validates the local refresh session like Refresh, then renews
// the provider tokens before rotating.
func (m *Manager) RefreshOAuth(ctx context.Context, raw string, provider OAuthRefresher, meta ClientMeta) (*Session, error) {
	stored, u, err := m.checkRefresh(ctx, raw, meta)
	if err != nil {
		return nil, err
	}
	if !u.UsesOAuth() || u.OAuthRefreshToken == nil || *u.OAuthRefreshToken == "" {
		return nil, errOAuthNotLinked
	}

	id, err := provider.Refresh(ctx, *u.OAuthRefreshToken)
	if err != nil {
		e := AuthError(CodeOAuthRefreshFailed, "Could not refresh the Google session")
		e.Err = err
		return nil, e
	}
	if id.Email != "" && id.Email != u.Email {
		if _, err := m.Store.DeleteRefreshToken(ctx, stored.JTI); err != nil {
			return nil, InternalError("delete refresh token", err)
		}
		return nil, errInvalidRefreshToken
	}
	if err := m.Store.UpdateOAuthTokens(ctx, u.ID, *id); err != nil {
		return nil, InternalError("store oauth tokens", err)
	}
	return m.rotate(ctx, stored, u)
}

// checkRefresh accepts a token only when signature, jti, stored hash,
// expiry and the owner's email all agree. A verified token whose jti is no
// longer stored is a replay of a rotated token and revokes the session.
func (m *Manager) checkRefresh(ctx context.Context, raw string, meta ClientMeta) (*RefreshToken, *User, error) {
	claims, err := m.Tokens.Verify(raw, TokenRefresh)
	if err != nil {
		return nil, nil, errInvalidRefreshToken
	}

	stored, err := m.Store.FindRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, nil, InternalError("load refresh token", err)
	}
	if stored == nil {
		if err := m.Store.RevokeRefreshSessions(ctx, claims.UserID()); err != nil {
			return nil, nil, InternalError("revoke refresh sessions", err)
		}
		m.audit(ctx, AuditEvent{EventType: AuditRefreshReuse, UserID: claims.UserID(), IP: meta.IP, UserAgent: meta.UserAgent})
		return nil, nil, errInvalidRefreshToken
	}

	reject := func() (*RefreshToken, *User, error) {
		if _, err := m.Store.DeleteRefreshToken(ctx, stored.JTI); err != nil {
			return nil, nil, InternalError("delete refresh token", err)
		}
		return nil, nil, errInvalidRefreshToken
	}

	if stored.UserID != claims.UserID() || !hashMatches(&stored.TokenHash, raw) || m.now().After(stored.ExpiresAt) {
		return reject()
	}

	u, err := m.Store.FindUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, nil, InternalError("load user", err)
	}
	if u == nil || u.Email != claims.Email {
		return reject()
	}
	return stored, u, nil
}

// rotate swaps the stored session for a new jti. Losing a concurrent
// rotation race counts as an invalid token.
func (m *Manager) rotate(ctx context.Context, stored *RefreshToken, u *User) (*Session, error) {
	next, err := m.Tokens.IssueRefresh(u)
	if err != nil {
		return nil, InternalError("issue refresh token", err)
	}
	ok, err := m.Store.RotateRefreshToken(ctx, stored.JTI, RefreshToken{
		UserID:    u.ID,
		TokenHash: HashString(next.Token),
		JTI:       next.JTI,
		ExpiresAt: next.ExpiresAt,
	})
	if err != nil {
		return nil, InternalError("rotate refresh token", err)
	}
	if !ok {
		return nil, errInvalidRefreshToken
	}

	access, err := m.Tokens.IssueAccess(u)
	if err != nil {
		return nil, InternalError("issue access token", err)
	}
	return &Session{
		User:             u,
		AccessToken:      access,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Logout ends the session named by the refresh token. It reports false,
// without error, when there was nothing to end.
func (m *Manager) Logout(ctx context.Context, raw string, meta ClientMeta) (bool, error) {
	claims, err := m.Tokens.Verify(raw, TokenRefresh)
	if err != nil {
		return false, nil
	}
	deleted, err := m.Store.DeleteRefreshToken(ctx, claims.ID)
	if err != nil {
		return false, InternalError("delete refresh token", err)
	}
	if deleted {
		m.audit(ctx, AuditEvent{EventType: AuditLogout, UserID: claims.UserID(), IP: meta.IP, UserAgent: meta.UserAgent})
	}
	return deleted, nil
}

// LogoutOAuth drops the stored provider tokens and the refresh session of
// the user in one transaction.
func (m *Manager) LogoutOAuth(ctx context.Context, userID string, meta ClientMeta) error {
	if err := m.Store.ClearOAuthSession(ctx, userID); err != nil {
		return InternalError("clear oauth session", err)
	}
	m.audit(ctx, AuditEvent{EventType: AuditLogout, UserID: userID, IP: meta.IP, UserAgent: meta.UserAgent,
		Meta: map[string]interface{}{"type": LoginMethodGoogle}})
	return nil
}

// CompleteOAuthLogin links or creates the account for a provider identity
// and signs it in, stopping at a pre-auth session when two-factor is on.
func (m *Manager) CompleteOAuthLogin(ctx context.Context, id OAuthIdentity, meta ClientMeta) (*Session, error) {
	if id.Email == "" {
		return nil, errEmailRequired
	}
	if id.Provider == "" {
		id.Provider = ProviderGoogle
	}
	u, err := m.Store.UpsertOAuthUser(ctx, id)
	if err != nil {
		return nil, InternalError("upsert oauth user", err)
	}
	if u.TwoFactorEnabled {
		return m.preAuthSession(u)
	}
	return m.issueSession(ctx, u, LoginMethodGoogle, meta)
}

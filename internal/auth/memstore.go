package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store honoring the same check-and-set
// contracts as UserRepository. Tests run the Manager and the HTTP layer
// against it.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*User
	refresh  map[string]*RefreshToken // by user id
	backup   map[string]map[string]bool
	// failNext makes the next EnableTwoFactor or ReplaceBackupCodes fail.
	failNext error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[string]*User{},
		refresh: map[string]*RefreshToken{},
		backup:  map[string]map[string]bool{},
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func (s *MemoryStore) CreateUser(_ context.Context, nu NewUser) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == nu.Email {
			return nil, ErrEmailTaken
		}
	}
	u := &User{
		ID:                     uuid.NewString(),
		Name:                   nu.Name,
		Email:                  nu.Email,
		PasswordHash:           strPtr(nu.PasswordHash),
		RegistrationDate:       time.Now(),
		VerificationCode:       strPtr(nu.VerificationCode),
		VerificationCodeExpiry: timePtr(nu.VerificationCodeExpiry),
		TmpTwoFactorSecret:     strPtr(nu.TmpTwoFactorSecret),
		TmpTwoFactorExpiry:     timePtr(nu.TmpTwoFactorExpiry),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) find(match func(*User) bool) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s *MemoryStore) user(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	return s.find(func(u *User) bool { return u.Email == email }), nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*User, error) {
	return s.user(id), nil
}

func (s *MemoryStore) FindUserByResetToken(_ context.Context, tokenHash string) (*User, error) {
	return s.find(func(u *User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == tokenHash
	}), nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) VerifyEmail(_ context.Context, userID, codeHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.VerificationCode == nil || *u.VerificationCode != codeHash {
		return false, nil
	}
	u.IsActive = true
	u.VerificationCode = nil
	u.VerificationCodeExpiry = nil
	u.LastLogin = &at
	return true, nil
}

func (s *MemoryStore) RecordLogin(_ context.Context, userID string, info LoginInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.LastLogin = timePtr(info.At)
		u.LastLoginMethod = strPtr(info.Method)
		u.LastIP = strPtr(info.IP)
		u.LastBrowser = strPtr(info.UserAgent)
	}
	return nil
}

func (s *MemoryStore) SetPasswordReset(_ context.Context, userID, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.ResetPasswordToken = strPtr(tokenHash)
		u.ResetPasswordExpiry = timePtr(expires)
	}
	return nil
}

func (s *MemoryStore) ResetPassword(_ context.Context, userID, tokenHash, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.ResetPasswordToken == nil || *u.ResetPasswordToken != tokenHash {
		return false, nil
	}
	u.PasswordHash = strPtr(passwordHash)
	u.ResetPasswordToken = nil
	u.ResetPasswordExpiry = nil
	delete(s.refresh, userID)
	return true, nil
}

func (s *MemoryStore) SetPendingTwoFactorSecret(_ context.Context, userID, secret string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.TmpTwoFactorSecret = strPtr(secret)
		u.TmpTwoFactorExpiry = timePtr(expires)
	}
	return nil
}

func (s *MemoryStore) EnableTwoFactor(_ context.Context, userID, secret string, codeHashes []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return false, err
	}
	u, ok := s.users[userID]
	if !ok || u.TmpTwoFactorSecret == nil || *u.TmpTwoFactorSecret != secret {
		return false, nil
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = strPtr(secret)
	u.TmpTwoFactorSecret = nil
	u.TmpTwoFactorExpiry = nil
	s.setCodes(userID, codeHashes)
	return true, nil
}

func (s *MemoryStore) DisableTwoFactor(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = nil
		u.TmpTwoFactorSecret = nil
		u.TmpTwoFactorExpiry = nil
		u.DisableOTP = nil
		u.DisableOTPExpiry = nil
	}
	delete(s.backup, userID)
	return nil
}

func (s *MemoryStore) SetDisableOTP(_ context.Context, userID, otpHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.DisableOTP = strPtr(otpHash)
		u.DisableOTPExpiry = timePtr(expires)
	}
	return nil
}

func (s *MemoryStore) SetRegenerateOTP(_ context.Context, userID, otpHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.RegenerateOTP = strPtr(otpHash)
		u.RegenerateOTPExpiry = timePtr(expires)
	}
	return nil
}

func (s *MemoryStore) ConsumeBackupCode(_ context.Context, userID, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.backup[userID]
	used, ok := codes[codeHash]
	if !ok || used {
		return false, nil
	}
	codes[codeHash] = true
	return true, nil
}

func (s *MemoryStore) ReplaceBackupCodes(_ context.Context, userID string, codeHashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.setCodes(userID, codeHashes)
	if u, ok := s.users[userID]; ok {
		u.RegenerateOTP = nil
		u.RegenerateOTPExpiry = nil
	}
	return nil
}

func (s *MemoryStore) setCodes(userID string, codeHashes []string) {
	codes := make(map[string]bool, len(codeHashes))
	for _, h := range codeHashes {
		codes[h] = false
	}
	s.backup[userID] = codes
}

func (s *MemoryStore) UpsertOAuthUser(_ context.Context, id OAuthIdentity) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u *User
	for _, candidate := range s.users {
		if candidate.OAuthProvider != nil && *candidate.OAuthProvider == id.Provider &&
			candidate.OAuthID != nil && *candidate.OAuthID == id.Subject {
			u = candidate
			break
		}
		if candidate.Email == id.Email {
			u = candidate
		}
	}
	if u == nil {
		u = &User{ID: uuid.NewString(), Name: id.Name, Email: id.Email, RegistrationDate: time.Now()}
		s.users[u.ID] = u
	}
	u.IsActive = true
	u.OAuthProvider = strPtr(id.Provider)
	u.OAuthID = strPtr(id.Subject)
	u.OAuthAccessToken = strPtr(id.AccessToken)
	if id.RefreshToken != "" {
		u.OAuthRefreshToken = strPtr(id.RefreshToken)
	}
	u.OAuthTokenExpiresAt = timePtr(id.Expiry)
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) UpdateOAuthTokens(_ context.Context, userID string, id OAuthIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.OAuthAccessToken = strPtr(id.AccessToken)
		if id.RefreshToken != "" {
			u.OAuthRefreshToken = strPtr(id.RefreshToken)
		}
		u.OAuthTokenExpiresAt = timePtr(id.Expiry)
	}
	return nil
}

func (s *MemoryStore) ClearOAuthSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.OAuthAccessToken = nil
		u.OAuthRefreshToken = nil
		u.OAuthTokenExpiresAt = nil
	}
	delete(s.refresh, userID)
	return nil
}

func (s *MemoryStore) UpsertRefreshToken(_ context.Context, t RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = time.Now()
	s.refresh[t.UserID] = &t
	return nil
}

func (s *MemoryStore) FindRefreshToken(_ context.Context, jti string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.refresh {
		if t.JTI == jti {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) RotateRefreshToken(_ context.Context, oldJTI string, next RefreshToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refresh[next.UserID]
	if !ok || cur.JTI != oldJTI {
		return false, nil
	}
	next.CreatedAt = time.Now()
	s.refresh[next.UserID] = &next
	return true, nil
}

func (s *MemoryStore) DeleteRefreshToken(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, t := range s.refresh {
		if t.JTI == jti {
			delete(s.refresh, uid)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RevokeRefreshSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, userID)
	return nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenPreAuth TokenType = "pre_auth"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongToken   = errors.New("unexpected token type")
)

// Claims is the payload of every token the service signs. Access and
// pre-auth tokens carry the super-user flag; refresh tokens carry the
// session id in the registered "jti" claim.
type Claims struct {
	Email       string    `json:"email"`
	IsSuperUser bool      `json:"is_super_user,omitempty"`
	TokenType   TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for.
func (c *Claims) UserID() string { return c.Subject }

// TokenSettings holds secrets and lifetimes. Access and pre-auth tokens share
// the access secret and are told apart by the token_type claim.
type TokenSettings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PreAuthTTL    time.Duration
}

// IssuedRefresh is a freshly signed refresh token plus the fields that get
// persisted alongside its hash.
type IssuedRefresh struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type TokenCodec struct {
	settings TokenSettings
	now      func() time.Time
}

func NewTokenCodec(settings TokenSettings) *TokenCodec {
	return &TokenCodec{settings: settings, now: time.Now}
}

func (c *TokenCodec) RefreshTTL() time.Duration { return c.settings.RefreshTTL }

func (c *TokenCodec) IssueAccess(u *User) (string, error) {
	return c.sign(u, TokenAccess, c.settings.AccessTTL, "")
}

// IssuePreAuth mints the restricted token handed out while a 2FA challenge
// is outstanding.
func (c *TokenCodec) IssuePreAuth(u *User) (string, error) {
	return c.sign(u, TokenPreAuth, c.settings.PreAuthTTL, "")
}

func (c *TokenCodec) IssueRefresh(u *User) (IssuedRefresh, error) {
	jti := uuid.NewString()
	token, err := c.sign(u, TokenRefresh, c.settings.RefreshTTL, jti)
	if err != nil {
		return IssuedRefresh{}, err
	}
	return IssuedRefresh{
		Token:     token,
		JTI:       jti,
		ExpiresAt: c.now().Add(c.settings.RefreshTTL),
	}, nil
}

func (c *TokenCodec) sign(u *User, typ TokenType, ttl time.Duration, jti string) (string, error) {
	now := c.now()
	claims := Claims{
		Email:     u.Email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ != TokenRefresh {
		claims.IsSuperUser = u.IsSuperUser
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret(typ))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify is the single verification path for every token kind. It checks
// the signature with the secret for want, the expiry, and that the token
// type claim equals want.
func (c *TokenCodec) Verify(raw string, want TokenType) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret(want), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Email == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrWrongToken
	}
	if want == TokenRefresh && claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *TokenCodec) secret(typ TokenType) []byte {
	if typ == TokenRefresh {
		return []byte(c.settings.RefreshSecret)
	}
	return []byte(c.settings.AccessSecret)
}

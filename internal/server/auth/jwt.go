// Package auth issues and verifies session tokens, hashes passwords and
// admits requests carrying a valid access token.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is what an access token asserts about its holder.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	UserName string `json:"username"`
	FullName string `json:"fullName"`
}

// RefreshClaims carries only the identity id.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

type idClaims interface {
	jwt.Claims
	id() string
}

func (c *AccessClaims) id() string  { return c.UserID }
func (c *RefreshClaims) id() string { return c.UserID }

// TokenService signs access and refresh tokens with separate HS256 keys.
// It holds no mutable state and never touches storage.
type TokenService struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

type TokenOption func(*TokenService)

// WithClock sets the time source used to stamp and check tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(cfg *config.Config, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		accessTTL:     cfg.AccessTokenValidityDuration,
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		refreshTTL:    cfg.RefreshTokenValidityDuration,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) registered(userID string, ttl time.Duration) (jwt.RegisteredClaims, time.Time) {
	now := s.now()
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}, exp
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IssueAccessToken returns a signed access token for u and its expiry.
func (s *TokenService) IssueAccessToken(u *models.User) (string, time.Time, error) {
	rc, exp := s.registered(u.ID, s.accessTTL)
	token, err := sign(&AccessClaims{
		RegisteredClaims: rc,
		UserID:           u.ID,
		Email:            u.Email,
		UserName:         u.UserName,
		FullName:         u.FullName,
	}, s.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueRefreshToken returns a signed refresh token for u and its expiry.
func (s *TokenService) IssueRefreshToken(u *models.User) (string, time.Time, error) {
	rc, exp := s.registered(u.ID, s.refreshTTL)
	token, err := sign(&RefreshClaims{RegisteredClaims: rc, UserID: u.ID}, s.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *TokenService) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.verify(token, s.accessSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.verify(token, s.refreshSecret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// verify checks signature, algorithm and expiry. It returns
// common.ErrTokenExpired for a well-signed token past its expiry and
// common.ErrInvalidToken for everything else.
func (s *TokenService) verify(tokenString string, secret []byte, claims idClaims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}

	if !token.Valid || claims.id() == "" {
		return common.ErrInvalidToken
	}

	return nil
}

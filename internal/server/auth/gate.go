package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type AccessVerifier interface {
	VerifyAccessToken(token string) (*AccessClaims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Gate admits requests that carry a valid access token for an existing
// identity. Transports extract the token and attach the admitted profile
// to the request context.
type Gate struct {
	tokens AccessVerifier
	users  UserLookup
}

func NewGate(tokens AccessVerifier, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Admit returns the sanitized profile of the token holder. Every failure is
// Unauthorized except a store outage, which stays Unavailable.
func (g *Gate) Admit(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, common.Unauthorized("unauthorized request")
	}

	claims, err := g.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, common.Unauthorized("invalid access token")
	}

	u, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if common.KindOf(err) == common.KindUnavailable {
			return nil, err
		}
		return nil, common.Unauthorized("invalid access token")
	}

	return u.Profile(), nil
}

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header value, or "".
func BearerToken(header string) string {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):])
}

type ctxKey struct{}

func WithUser(ctx context.Context, p *models.Profile) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// UserFromContext returns the profile attached by the gate.
func UserFromContext(ctx context.Context) (*models.Profile, bool) {
	p, ok := ctx.Value(ctxKey{}).(*models.Profile)
	return p, ok && p != nil
}

package grpc

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

func tokenResponse(p *services.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
	}
}

// user returns the profile the interceptor attached.
func user(ctx context.Context) (*models.Profile, error) {
	p, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}
	return p, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	sess, err := s.users.Login(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{User: sess.User, TokenResponse: tokenResponse(&sess.TokenPair)}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*TokenResponse, error) {
	pair, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := tokenResponse(pair)
	return &resp, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	p, err := user(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.Logout(ctx, p.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *Empty) (*UserResponse, error) {
	p, err := user(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.users.CurrentUser(ctx, p.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UserResponse{User: profile}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	p, err := user(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.ChangePassword(ctx, p.ID, req.OldPassword, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

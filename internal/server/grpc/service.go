package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"google.golang.org/grpc"
)

const serviceName = "accounts.v1.Accounts"

// Full method names.
const (
	MethodLogin          = "/" + serviceName + "/Login"
	MethodRefreshToken   = "/" + serviceName + "/RefreshToken"
	MethodLogout         = "/" + serviceName + "/Logout"
	MethodCurrentUser    = "/" + serviceName + "/CurrentUser"
	MethodChangePassword = "/" + serviceName + "/ChangePassword"
)

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User *models.Profile `json:"user"`
	TokenResponse
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type UserResponse struct {
	User *models.Profile `json:"user"`
}

type Empty struct{}

// AccountsServer is the server API of accounts.v1.Accounts.
type AccountsServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*TokenResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	CurrentUser(context.Context, *Empty) (*UserResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
}

func unary[Req, Resp any](name string, call func(AccountsServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccountsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccountsServer), ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AccountsServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", AccountsServer.Login),
		unary("RefreshToken", AccountsServer.RefreshToken),
		unary("Logout", AccountsServer.Logout),
		unary("CurrentUser", AccountsServer.CurrentUser),
		unary("ChangePassword", AccountsServer.ChangePassword),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "accounts.v1",
}

func RegisterAccountsServer(s grpc.ServiceRegistrar, srv AccountsServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Client calls accounts.v1.Accounts over conn using the Struct codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.conn.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.invoke(ctx, MethodLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	out := new(TokenResponse)
	if err := c.invoke(ctx, MethodRefreshToken, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodLogout, &Empty{}, &Empty{}, opts...)
}

func (c *Client) CurrentUser(ctx context.Context, opts ...grpc.CallOption) (*UserResponse, error) {
	out := new(UserResponse)
	if err := c.invoke(ctx, MethodCurrentUser, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodChangePassword, in, &Empty{}, opts...)
}

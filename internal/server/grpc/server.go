// Package grpc is the gRPC transport of the accounts service. Messages are
// exchanged as google.protobuf.Struct values (content subtype "pbstruct").
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"google.golang.org/grpc"
)

// Users is the part of the session manager exposed over gRPC.
type Users interface {
	Login(ctx context.Context, username, email, password string) (*services.Session, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, presented string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.Profile, error)
}

type Gate interface {
	Admit(ctx context.Context, token string) (*models.Profile, error)
}

type GRPCServer struct {
	address string
	users   Users
	gate    Gate
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us Users, gate Gate) (*GRPCServer, error) {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		gate:    gate,
	}, nil
}

// NewServer returns a grpc.Server with the interceptors and the service
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterAccountsServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

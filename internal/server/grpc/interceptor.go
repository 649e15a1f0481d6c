package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var protectedMethods = map[string]bool{
	MethodLogout:         true,
	MethodCurrentUser:    true,
	MethodChangePassword: true,
}

// CodeFor maps an error kind to a gRPC status code.
func CodeFor(kind common.Kind) codes.Code {
	switch kind {
	case common.KindValidation:
		return codes.InvalidArgument
	case common.KindConflict:
		return codes.AlreadyExists
	case common.KindNotFound:
		return codes.NotFound
	case common.KindUnauthorized:
		return codes.Unauthenticated
	case common.KindUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	return status.Error(CodeFor(common.KindOf(err)), common.MessageOf(err))
}

// tokenFromMetadata reads "authorization: Bearer <token>", falling back to
// the "access_token" key.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		if token := auth.BearerToken(values[0]); token != "" {
			return token
		}
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	profile, err := s.gate.Admit(ctx, tokenFromMetadata(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(auth.WithUser(ctx, profile), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

package service

import (
	"context"
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const msgConnectionClosed = "connection closed"
const msgNodeUnavailable = "no node available"
const msgUnauthenticated = "unauthenticated"
const msgInternal = "internal error"

// CenterErrorToGRPCStreamInterceptor returns a stream server interceptor: runs the handler, logs a failed
// stream and maps its error via centerErrorToGRPC.
//
// Called from cmd/main when creating the gRPC server (grpc.ChainStreamInterceptor).
func CenterErrorToGRPCStreamInterceptor(logger log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		if err != nil {
			level.Info(logger).Log(
				"msg", "stream handler error",
				"method", info.FullMethod,
				"err", err,
			)
			err = centerErrorToGRPC(err)
		}
		return err
	}
}

// centerErrorToGRPC maps stream errors to gRPC status: nil → nil; statuses other than Unknown are kept;
// context cancellation → Canceled; ErrConnClosed → Unavailable; CenterError codes map to their gRPC
// counterparts; anything else → Internal.
func centerErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Err()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, context.Canceled.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrCallTimeout):
		return status.Error(codes.DeadlineExceeded, context.DeadlineExceeded.Error())
	case errors.Is(err, ErrConnClosed):
		return status.Error(codes.Unavailable, msgConnectionClosed)
	}
	switch ToCenterErrorCode(err) {
	case ErrUnauthenticated:
		return status.Error(codes.Unauthenticated, msgUnauthenticated)
	case ErrUnavailable:
		return status.Error(codes.Unavailable, msgNodeUnavailable)
	case ErrBadParameter:
		return status.Error(codes.InvalidArgument, ToCenterError(err).Message)
	case ErrEntityNotFound:
		return status.Error(codes.NotFound, ToCenterError(err).Message)
	default:
		return status.Error(codes.Internal, msgInternal)
	}
}

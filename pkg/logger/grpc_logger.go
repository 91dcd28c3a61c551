package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewGrpcUnaryServerInterceptor logs every unary call with its status code
// and duration.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logGrpcResult(logger, "gRPC request", info.FullMethod, err, time.Since(start))
		return resp, err
	}
}

// NewGrpcStreamServerInterceptor logs streaming calls once they finish.
func NewGrpcStreamServerInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		wrapped := &wrappedServerStream{ServerStream: ss}
		err := handler(srv, wrapped)
		logGrpcResult(logger, "gRPC stream", info.FullMethod, err, time.Since(start),
			zap.Int("grpc.recv_count", wrapped.recvCount),
			zap.Int("grpc.send_count", wrapped.sendCount),
		)
		return err
	}
}

// ServerOptions returns the interceptor options for grpc.NewServer.
func ServerOptions(logger *zap.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(NewGrpcUnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(NewGrpcStreamServerInterceptor(logger)),
	}
}

func logGrpcResult(logger *zap.Logger, msg, fullMethod string, err error, d time.Duration, extra ...zap.Field) {
	code := status.Code(err)
	fields := append([]zap.Field{
		zap.String("grpc.service", path.Dir(fullMethod)[1:]),
		zap.String("grpc.method", path.Base(fullMethod)),
		zap.String("grpc.code", code.String()),
		zap.Duration("grpc.duration", d),
	}, extra...)

	switch code {
	case codes.OK:
		logger.Debug(msg+" completed", fields...)
	case codes.Canceled, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Unavailable, codes.DataLoss:
		logger.Warn(msg+" failed", append(fields, zap.Error(err))...)
	default:
		logger.Error(msg+" error", append(fields, zap.Error(err))...)
	}
}

type wrappedServerStream struct {
	grpc.ServerStream
	recvCount int
	sendCount int
}

func (w *wrappedServerStream) RecvMsg(m interface{}) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recvCount++
	}
	return err
}

func (w *wrappedServerStream) SendMsg(m interface{}) error {
	err := w.ServerStream.SendMsg(m)
	if err == nil {
		w.sendCount++
	}
	return err
}

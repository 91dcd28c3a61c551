package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name the relay asks about.
const ServiceName = "billing.Webhooks"

// Server exposes gRPC health checking for the main application.
type Server struct {
	config   config.GRPCConfig
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewServer(cfg config.GRPCConfig, log *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: log,
		server: grpc.NewServer(logger.ServerOptions(log)...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return s
}

// Start listens and serves until Shutdown. The webhook service reports
// SERVING once the listener is up.
func (s *Server) Start() error {
	addr := s.config.Addr()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	return s.server.Serve(listener)
}

// Shutdown flips health to NOT_SERVING first so the relay stops forwarding,
// then drains in-flight calls.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
	return nil
}

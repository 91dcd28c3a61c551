package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker asks the main application whether it is serving.
type HealthChecker struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker creates a client for addr. The connection is lazy; no
// call is made until Check.
func NewHealthChecker(addr string, timeout time.Duration, logger *zap.Logger) (*HealthChecker, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create health client: %w", err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (h *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("main application is %s", resp.GetStatus())
	}
	return nil
}

func (h *HealthChecker) Close() error {
	return h.conn.Close()
}

package grpc

import (
	"context"
	"fmt"
	"time"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client checks the health of a running engine.
type Client struct {
	conn          *grpc.ClientConn
	health        healthpb.HealthClient
	serverAddress string
	timeout       time.Duration
}

func NewClient(serverAddress string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(serverAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", serverAddress, err)
	}
	return &Client{
		conn:          conn,
		health:        healthpb.NewHealthClient(conn),
		serverAddress: serverAddress,
		timeout:       timeout,
	}, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Check returns nil when the engine reports SERVING.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check against %s failed: %w", c.serverAddress, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("engine at %s is %s", c.serverAddress, resp.GetStatus())
	}
	return nil
}

package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"studydeck/utils"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the forum engine.
const ServiceName = "studydeck.Forum"

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// HealthServer serves the standard gRPC health protocol for the engine.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

// NewHealthServer listens on addr. The engine starts out NOT_SERVING until
// SetServing or Watch marks it healthy.
func NewHealthServer(addr string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{server: srv, health: hs, listener: lis}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Serve blocks until Stop is called.
func (h *HealthServer) Serve() error {
	utils.Info("grpc", "serve", fmt.Sprintf("health endpoint listening on %s", h.Addr()))
	if err := h.server.Serve(h.listener); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("health server stopped: %w", err)
	}
	return nil
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
}

// Watch runs fn every interval and publishes the result until ctx ends.
func (h *HealthServer) Watch(ctx context.Context, fn Checker, interval time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		if err := fn(pctx); err != nil {
			utils.Warn("grpc", "health_check", fmt.Sprintf("engine unhealthy: %v", err))
			h.SetServing(false)
			return
		}
		h.SetServing(true)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Stop marks the service as shutting down and stops serving.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

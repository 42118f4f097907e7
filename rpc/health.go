package rpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/blockroom/logger"
)

// HealthServer serves the standard grpc.health.v1.Health service so load
// balancers can check the process.
type HealthServer struct {
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{listener: listener, server: srv, health: hs}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// SetServing flips the overall status reported to health checks.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Start blocks until Stop is called.
func (h *HealthServer) Start() error {
	logger.Log.Infof("gRPC health listening on %s", h.Addr())
	if err := h.server.Serve(h.listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

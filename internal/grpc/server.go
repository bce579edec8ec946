// Package grpc hosts the internal gRPC endpoint used for health probing.
package grpc

import (
	"net"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger-core/internal/observability"
)

// Server wraps a grpc.Server exposing the standard health service.
type Server struct {
	srv    *grpclib.Server
	health *health.Server
	log    logrus.FieldLogger
}

// NewServer builds the server with tracing and request metrics installed.
func NewServer(serviceName string, log logrus.FieldLogger) *Server {
	srv := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{srv: srv, health: hs, log: log}
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.WithField("addr", lis.Addr().String()).Info("grpc server listening")
	return s.srv.Serve(lis)
}

// Stop marks every service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

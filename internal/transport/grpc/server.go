package grpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Rdemo143/RenTO/internal/observability"
)

// Server exposes grpc.health.v1.Health. The overall status follows the
// readiness of the listed dependencies.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	service    string
	deps       []observability.Pinger
}

func New(service string, deps ...observability.Pinger) *Server {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	s := &Server{
		grpcServer: grpcServer,
		health:     hs,
		service:    service,
		deps:       deps,
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(s.service, st)
}

// CheckReadiness pings every dependency once and updates the served status.
func (s *Server) CheckReadiness(ctx context.Context) bool {
	for _, d := range s.deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := d.PingContext(pctx)
		cancel()
		if err != nil {
			observability.Log.Warn("grpc health: dependency unreachable", zap.Error(err))
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// WatchReadiness re-checks dependencies every interval until ctx ends.
func (s *Server) WatchReadiness(ctx context.Context, interval time.Duration) {
	s.CheckReadiness(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckReadiness(ctx)
			}
		}
	}()
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) Start(addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		observability.Log.Fatal("failed to listen for grpc", zap.String("addr", addr), zap.Error(err))
	}

	observability.Log.Info("gRPC listening", zap.String("addr", addr))
	if err := s.grpcServer.Serve(lis); err != nil {
		observability.Log.Error("gRPC server stopped", zap.Error(err))
	}
}

func (s *Server) Stop() {
	observability.Log.Info("shutting down gRPC...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}


// Package health grpc health endpoint driven by periodic probes.
package health

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe returns nil while the dependency is healthy
type Probe func(ctx context.Context) error

// Server grpc health server for one service name
type Server struct {
	service string
	grpc    *grpc.Server
	health  *health.Server

	mu     sync.Mutex
	probes map[string]Probe
}

// NewServer create health server, status starts NOT_SERVING until the first check
func NewServer(service string) *Server {
	s := &Server{
		service: service,
		grpc:    grpc.NewServer(),
		health:  health.NewServer(),
		probes:  make(map[string]Probe),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// AddProbe register a named dependency probe
func (s *Server) AddProbe(name string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = p
}

// Check run every probe once and update the serving status
func (s *Server) Check(ctx context.Context) bool {
	s.mu.Lock()
	probes := make(map[string]Probe, len(s.probes))
	for k, v := range s.probes {
		probes[k] = v
	}
	s.mu.Unlock()

	ok := true
	for name, p := range probes {
		if err := p(ctx); err != nil {
			logger.Log.Warn("health probe failed", zap.String("probe", name), zap.Error(err))
			ok = false
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(s.service, status)
	s.health.SetServingStatus("", status)
	return ok
}

// Watch re-run Check every interval until ctx is done
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Serve listen on port (":50051" style) and block
func (s *Server) Serve(port string) error {
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", port, err)
	}
	logger.Log.Info("grpc health server listening", zap.String("port", port))
	return s.grpc.Serve(lis)
}

// Stop graceful stop
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Status current status of the service, used by tests and the REST health route
func (s *Server) Status() healthpb.HealthCheckResponse_ServingStatus {
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: s.service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.Status
}

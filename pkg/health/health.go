package health

import (
	"context"
	"net"
	"sync"
	"time"

	"video_pipeline_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 10 * time.Second

// Check dependency probe, nil means reachable
type Check func(ctx context.Context) error

// Server gRPC health endpoint whose status follows the dependency checks
type Server struct {
	service  string
	checks   map[string]Check
	interval time.Duration

	hs   *health.Server
	grpc *grpc.Server

	mu     sync.Mutex
	failed map[string]error
}

// New create a health server for service, interval <= 0 probes every 10s
func New(service string, checks map[string]Check, interval time.Duration) *Server {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	s := &Server{
		service:  service,
		checks:   checks,
		interval: interval,
		hs:       health.NewServer(),
		grpc:     grpc.NewServer(),
		failed:   map[string]error{},
	}
	healthpb.RegisterHealthServer(s.grpc, s.hs)
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(s.service, status)
}

// Probe run every check once and publish the result
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	failed := map[string]error{}
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := check(checkCtx)
		cancel()
		if err != nil {
			failed[name] = err
		}
	}

	s.mu.Lock()
	for name, err := range failed {
		if _, seen := s.failed[name]; !seen {
			logger.Log.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
		}
	}
	for name := range s.failed {
		if _, still := failed[name]; !still {
			logger.Log.Info("dependency recovered", zap.String("dependency", name))
		}
	}
	s.failed = failed
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.set(status)
	return status
}

// Handler the underlying health service, used in tests and for extra registrations
func (s *Server) Handler() healthpb.HealthServer {
	return s.hs
}

// Serve listen on addr and probe until ctx is done
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		s.Probe(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.hs.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-ticker.C:
				s.Probe(ctx)
			}
		}
	}()

	logger.Log.Info("health server listening", zap.String("service", s.service), zap.String("addr", addr))
	return s.grpc.Serve(lis)
}

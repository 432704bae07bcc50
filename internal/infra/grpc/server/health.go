// Package server exposes the control plane's health over the standard gRPC
// health checking protocol.
package server

import (
	"context"
	"net"
	"sort"
	"time"

	"apphost/pkg/log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultRefreshInterval = 5 * time.Second

// Check reports the health of one component. A nil error means serving.
type Check func() error

// HealthServer serves grpc.health.v1.Health. The empty service name
// reports the process itself; every registered check gets its own name.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
}

func NewHealthServer(checks map[string]Check) *HealthServer {
	s := &HealthServer{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checks:   checks,
		interval: defaultRefreshInterval,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.Refresh()
	return s
}

// WithInterval changes how often checks are re-evaluated.
func (s *HealthServer) WithInterval(d time.Duration) *HealthServer {
	s.interval = d
	return s
}

// Refresh evaluates every check and publishes the result.
func (s *HealthServer) Refresh() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := healthpb.HealthCheckResponse_SERVING
		if err := s.checks[name](); err != nil {
			log.Debug("Health check failing", "service", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(name, status)
	}
}

// Serve serves on l until ctx is done.
func (s *HealthServer) Serve(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.Refresh()
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			return nil
		}
	}
}

// Run listens on address and serves until ctx is done.
func (s *HealthServer) Run(ctx context.Context, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return log.Errorf("health server listen on %s: %w", address, err)
	}
	log.Info("gRPC health server listening", "address", address)
	return s.Serve(ctx, l)
}

package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "jiraquery.v1.Query"

// Checker reports whether the server can answer queries.
// *refdata.Cache satisfies it.
type Checker interface {
	Loaded() bool
}

// Service publishes the standard grpc.health.v1 status: SERVING once
// reference data has loaded, NOT_SERVING before.
type Service struct {
	srv     *health.Server
	checker Checker

	mu      sync.Mutex
	serving bool
}

// New creates a Service reporting NOT_SERVING until the first Update that
// finds the checker ready.
func New(c Checker) *Service {
	s := &Service{srv: health.NewServer(), checker: c}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register adds the health service to g.
func (s *Service) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.srv)
}

// Update re-evaluates the checker and publishes the result.
func (s *Service) Update() {
	ready := s.checker.Loaded()
	s.mu.Lock()
	defer s.mu.Unlock()
	if ready == s.serving {
		return
	}
	s.serving = ready
	if ready {
		s.set(healthpb.HealthCheckResponse_SERVING)
		slog.Info("health: serving")
		return
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	slog.Warn("health: not serving")
}

func (s *Service) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.srv.SetServingStatus("", st)
	s.srv.SetServingStatus(ServiceName, st)
}

// Run calls Update every interval until ctx is cancelled, then marks every
// service NOT_SERVING so watchers see the shutdown.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.Update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.srv.Shutdown()
			return
		case <-t.C:
			s.Update()
		}
	}
}

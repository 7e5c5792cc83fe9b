// Package grpc serves the standard grpc.health.v1 service on a side port so
// orchestrators can probe the server without touching the public API.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/memestore/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the HTTP API. The
// empty name reports overall server health.
const ServiceName = "memestore.Api"

const defaultProbeInterval = 10 * time.Second

// Probe reports whether a dependency is usable. *sql.DB satisfies it through
// PingContext.
type Probe interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	address  string
	logger   logging.Logger
	probes   map[string]Probe
	interval time.Duration
	health   *health.Server
}

// NewHealthServer creates a health server on address. Each probe is checked
// every interval; any failing probe turns the whole server NOT_SERVING.
func NewHealthServer(address string, l logging.Logger, probes map[string]Probe, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	return &HealthServer{
		address:  address,
		logger:   l.With("module", "grpc_health"),
		probes:   probes,
		interval: interval,
		health:   health.NewServer(),
	}
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *HealthServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC health server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// probe runs every dependency check and publishes the result.
func (s *HealthServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING

	for name, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.interval/2)
		err := p.PingContext(pctx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "health probe failed", "probe", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

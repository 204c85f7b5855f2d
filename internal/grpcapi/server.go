// Package grpcapi serves the checkpoint commands over gRPC, alongside the
// standard gRPC health service.
package grpcapi

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
)

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Checkpoint *service.Checkpoint
	// Session is the terminal's session handle passed to every command.
	Session session.Context
}

type Server struct {
	addr   string
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(d.Logger)))
	RegisterCheckpointServer(gs, NewService(d.Checkpoint, d.Session, d.Logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{addr: d.Addr, logger: d.Logger, grpc: gs, health: hs}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks the service NOT_SERVING and drains in-flight calls until ctx
// expires, then forces the server down.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("dur", time.Since(start)),
		)
		return resp, err
	}
}

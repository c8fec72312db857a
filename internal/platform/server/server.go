package server

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	jobmarketv1 "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/grpc/api/jobmarket/v1"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/grpc/handler"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/config"
)

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr      string
	shutdownTimeout time.Duration
	grpcServer      *grpc.Server
	health          *health.Server
	logger          *zap.Logger
}

// New は求人サービスとヘルスチェックを登録した gRPC サーバーを構築します。
func New(cfg config.ServerConfig, jobs job.UseCase, verifier *auth.Verifier, logger *zap.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(logger),
			loggingUnaryInterceptor(logger),
			verifier.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			recoveryStreamInterceptor(logger),
			verifier.StreamServerInterceptor(),
		),
	}, opts...)
	srv := grpc.NewServer(opts...)

	jobmarketv1.RegisterJobLifecycleServiceServer(srv, handler.NewJobGrpcHandler(jobs, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		listenAddr:      cfg.ListenAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		grpcServer:      srv,
		health:          hs,
		logger:          logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.listenAddr)
	}
	s.logger.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
	return s.Serve(ctx, lis)
}

// Serve は lis で待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(jobmarketv1.ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.GracefulStop()
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "serve gRPC")
	}
	if ctx.Err() != nil {
		<-stopped
	}
	return nil
}

// GracefulStop は処理中の RPC を待って停止します。shutdownTimeout を過ぎると強制停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	if s.shutdownTimeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
		<-done
	}
}

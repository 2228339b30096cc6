package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName は gRPC ヘルスチェックで公開するサービス名です。
const ServiceName = "companies.v1.CompanyService"

// Options は Server の設定です。
type Options struct {
	HTTPAddr        string
	GRPCHealthAddr  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server は HTTP API サーバーと gRPC ヘルスチェックサーバーのライフサイクルを管理します。
type Server struct {
	opts       Options
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.Logger
}

// New は HTTP ハンドラーと gRPC ヘルスサービスを備えた Server を構築します。
// GRPCHealthAddr が空の場合 gRPC サーバーは起動しません。
func New(opts Options, handler http.Handler, logger *zap.Logger, grpcOpts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer(grpcOpts...)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return &Server{
		opts: opts,
		httpServer: &http.Server{
			Addr:              opts.HTTPAddr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		grpcServer: grpcSrv,
		health:     healthSrv,
		logger:     logger,
	}
}

// Health は gRPC ヘルスサーバーを返します。
func (s *Server) Health() *health.Server {
	return s.health
}

// Run はサーバーを起動し、コンテキストがキャンセルされるとグレースフルに停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.opts.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.HTTPAddr, err)
	}

	var grpcLis net.Listener
	if s.opts.GRPCHealthAddr != "" {
		grpcLis, err = net.Listen("tcp", s.opts.GRPCHealthAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen on %s: %w", s.opts.GRPCHealthAddr, err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は指定されたリスナーで待ち受けます。grpcLis が nil の場合 gRPC は起動しません。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	s.setServing(healthpb.HealthCheckResponse_SERVING)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", httpLis.Addr().String()))
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.logger.Info("grpc health server listening", zap.String("addr", grpcLis.Addr().String()))
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down servers")
	s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.health.Shutdown()
	s.stopGRPC(ctx)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// stopGRPC は GracefulStop を試み、期限までに終わらなければ強制停止します。
func (s *Server) stopGRPC(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
		<-done
	}
}

func (s *Server) setServing(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	redisevents "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/events/redis"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/rest"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/db/postgres"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/logger"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/scheduler"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	jobRepo := postgres.NewJobRepository(dbPool)
	personRepo := postgres.NewPersonRepository(dbPool)

	opts := []job.Option{
		job.WithLocation(cfg.Attendance.Location),
		job.WithLogger(zl.Named("job")),
	}
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("redis is unreachable, change events may be lost", zap.String(logger.FieldAddress, cfg.Redis.Addr), zap.Error(err))
		}
		opts = append(opts,
			job.WithPublisher(redisevents.NewPublisher(rdb, cfg.Redis.ChannelPrefix)),
			job.WithWatcher(redisevents.NewWatcher(rdb, cfg.Redis.ChannelPrefix, cfg.Redis.BufferSize, zl.Named("watch"))),
		)
	}

	jobSvc := job.NewService(jobRepo, personRepo, nil, pg.NewTransactionManager(dbPool), opts...)
	verifier := auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)

	g, gctx := errgroup.WithContext(ctx)

	grpcServer := server.New(cfg.Server, jobSvc, verifier, zl.Named("grpc"))
	g.Go(func() error { return grpcServer.Run(gctx) })

	if cfg.HTTP.ListenAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := rest.NewRouter(jobSvc, verifier, cfg.HTTP, zl.Named("http"))
		httpServer := server.NewHTTP(cfg.HTTP.ListenAddr, router, cfg.Server.ShutdownTimeout, zl.Named("http"))
		g.Go(func() error { return httpServer.Run(gctx) })
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(jobSvc, cfg.Scheduler.SweepSpec, cfg.Attendance.Location, zl.Named("scheduler"))
		g.Go(func() error { return sched.Run(gctx) })
	}

	return g.Wait()
}

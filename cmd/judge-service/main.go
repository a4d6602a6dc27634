package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/http/health"
	commonmw "ojcore/internal/common/http/middleware"
	"ojcore/internal/common/mq"
	"ojcore/internal/common/storage"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/artifact"
	"ojcore/internal/judge/controller"
	"ojcore/internal/judge/repository"
	"ojcore/internal/judge/sandbox"
	"ojcore/internal/judge/sandbox/config"
	"ojcore/internal/judge/sandbox/engine"
	"ojcore/internal/judge/sandbox/observer"
	"ojcore/internal/judge/sandbox/runner"
	"ojcore/internal/judge/service"
	"ojcore/pkg/utils/logger"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis failed: %w", err)
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var objStorage storage.ObjectStorage
	if appCfg.MinIO.Endpoint != "" {
		minioStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			return fmt.Errorf("init minio failed: %w", err)
		}
		objStorage = minioStorage
	}
	harnessStore := artifact.NewStore(objStorage, appCfg.Harness)

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig())
	if err != nil {
		return fmt.Errorf("init kafka failed: %w", err)
	}
	defer func() {
		_ = mqClient.Close()
	}()
	dispatcher := dispatch.New(mqClient, appCfg.Dispatch)

	metrics := observer.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	localRepo := config.NewLocalRepository(appCfg.Language.Languages, appCfg.Language.Profiles)
	eng, err := engine.NewEngine(appCfg.Sandbox, localRepo)
	if err != nil {
		return fmt.Errorf("init sandbox engine failed: %w", err)
	}
	jobRunner := runner.NewRunnerWithObserver(eng, appCfg.Runner, metrics)
	pool := sandbox.NewPool(appCfg.Worker.PoolSize, metrics)
	worker := sandbox.NewWorker(jobRunner, localRepo, localRepo, pool, appCfg.Worker.toWorkerConfig())
	worker.SetMetrics(metrics)

	statusRepo := repository.NewStatusRepository(redisCache, "", appCfg.Status.TTL)
	worker.SetStatusReporter(statusRepo)

	judgeSvc, err := service.NewService(service.Config{
		Executor:      worker,
		Harness:       harnessStore,
		Publisher:     dispatcher,
		Status:        statusRepo,
		Attempts:      repository.NewAttemptRepository(redisCache, "", appCfg.Status.AttemptTTL),
		Lock:          repository.NewJobLock(redisCache, "", appCfg.Status.LockTTL),
		ExecRetry:     appCfg.Worker.ExecRetry,
		WorkerTimeout: appCfg.Worker.Timeout,
		StatusTimeout: appCfg.Status.Timeout,
		LockWait:      appCfg.Status.LockWait,
	})
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.ConsumeJobs(ctx, judgeSvc.HandleMessage); err != nil {
		return err
	}
	if err := mqClient.Start(); err != nil {
		return fmt.Errorf("start kafka consumer failed: %w", err)
	}
	defer func() {
		_ = mqClient.Stop()
	}()

	httpServer := buildHTTPServer(appCfg.Server, statusRepo, map[string]health.Pinger{"redis": redisCache, "kafka": mqClient})
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "judge http server started", zap.String("addr", appCfg.Server.Addr), zap.Int("pool_size", pool.Size()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildHTTPServer(cfg ServerConfig, statusRepo controller.StatusReader, deps map[string]health.Pinger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", health.Handler(deps))
	controller.NewJudgeController(statusRepo).Register(router.Group("/api/v1"))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

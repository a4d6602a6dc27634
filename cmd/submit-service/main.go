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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/http/health"
	commonmw "ojcore/internal/common/http/middleware"
	"ojcore/internal/common/mq"
	"ojcore/internal/common/storage"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/artifact"
	judgeController "ojcore/internal/judge/controller"
	judgeRepo "ojcore/internal/judge/repository"
	problemRepo "ojcore/internal/problem/repository"
	"ojcore/internal/submit/controller"
	submitRepo "ojcore/internal/submit/repository"
	"ojcore/internal/submit/service"
	"ojcore/pkg/utils/logger"
)

const defaultConfigPath = "configs/submit_service.yaml"

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
		logger.Error(context.Background(), "submit service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

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
		if err := minioStorage.EnsureBucket(context.Background(), appCfg.Harness.Bucket, appCfg.MinIO.Region); err != nil {
			return fmt.Errorf("ensure harness bucket failed: %w", err)
		}
		objStorage = minioStorage
	}

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig())
	if err != nil {
		return fmt.Errorf("init kafka failed: %w", err)
	}
	defer func() {
		_ = mqClient.Close()
	}()
	dispatcher := dispatch.New(mqClient, appCfg.Dispatch)

	statusRepo := judgeRepo.NewStatusRepository(redisCache, "", appCfg.Submit.StatusTTL)
	submitService, err := service.NewSubmitService(service.Config{
		Submissions:    submitRepo.NewSubmissionRepositoryWithTTL(mysqlDB, redisCache, appCfg.Submit.SubmissionCacheTTL, appCfg.Submit.SubmissionEmptyTTL),
		Problems:       problemRepo.NewProblemRepository(mysqlDB, redisCache, appCfg.Problem),
		Attempts:       judgeRepo.NewAttemptRepository(redisCache, "", appCfg.Submit.AttemptTTL),
		Harness:        artifact.NewStore(objStorage, appCfg.Harness),
		Dispatcher:     dispatcher,
		Status:         statusRepo,
		Cache:          redisCache,
		MaxCodeBytes:   appCfg.Submit.MaxCodeBytes,
		IdempotencyTTL: appCfg.Submit.IdempotencyTTL,
		RateLimit:      appCfg.Submit.RateLimit,
		Timeouts:       appCfg.Submit.Timeouts,
	})
	if err != nil {
		return fmt.Errorf("init submit service failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatcher.ConsumeResults(ctx, submitService.HandleResultMessage); err != nil {
		return err
	}
	if err := mqClient.Start(); err != nil {
		return fmt.Errorf("start kafka consumer failed: %w", err)
	}
	defer func() {
		_ = mqClient.Stop()
	}()

	httpServer := buildHTTPServer(appCfg.Server, submitService, statusRepo, map[string]health.Pinger{
		"mysql": mysqlDB,
		"redis": redisCache,
		"kafka": mqClient,
	})
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "submit http server started", zap.String("addr", appCfg.Server.Addr))
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

func buildHTTPServer(cfg ServerConfig, submitService controller.SubmissionService, statusRepo judgeController.StatusReader, deps map[string]health.Pinger) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", health.Handler(deps))

	api := router.Group("/api/v1")
	controller.NewSubmitController(submitService).Register(api)
	judgeController.NewJudgeController(statusRepo).Register(api)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

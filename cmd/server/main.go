package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailfeed/backend/internal/config"
	"mailfeed/backend/internal/gmail"
	"mailfeed/backend/internal/logger"
	"mailfeed/backend/internal/monitoring"
	"mailfeed/backend/internal/pool"
	"mailfeed/backend/internal/reconcile"
	"mailfeed/backend/internal/service"
	"mailfeed/backend/internal/storage"
	"mailfeed/backend/internal/storage/memory"
	redisstore "mailfeed/backend/internal/storage/redis"
	httptransport "mailfeed/backend/internal/transport/http"
)

// main 是通知摄取服务的程序入口。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	logCfg := logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting mailfeed server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	var store storage.RecordStore
	switch cfg.Storage.Type {
	case "redis":
		redisStore, err := redisstore.New(&cfg.Redis, cfg.Feed.MaxMessages, cfg.Feed.RecordTTL, log)
		if err != nil {
			log.Fatal("failed to initialize redis storage", zap.Error(err))
		}
		store = redisStore
		log.Info("using redis storage",
			zap.String("address", cfg.Redis.Address),
			zap.Int("max_messages", cfg.Feed.MaxMessages),
			zap.Duration("record_ttl", cfg.Feed.RecordTTL),
		)
	default:
		store = memory.NewStore(cfg.Feed.MaxMessages, cfg.Feed.RecordTTL)
		log.Info("using memory storage",
			zap.Int("max_messages", cfg.Feed.MaxMessages),
			zap.Duration("record_ttl", cfg.Feed.RecordTTL),
		)
	}
	defer store.Close()

	// 初始化邮件提供方客户端
	gmailClient, err := gmail.New(ctx, &cfg.Gmail, log)
	if err != nil {
		log.Fatal("failed to initialize gmail client", zap.Error(err))
	}

	// 初始化监控指标
	metrics := monitoring.NewMetrics()

	// 初始化服务层
	reconciler := reconcile.New(gmailClient, cfg.Gmail.FetchWorkers, log)
	reconciler.SetFallbackCounter(metrics.ReconcileFallbacks)
	ingestService := service.NewIngestService(reconciler, store, metrics, log)
	feedService := service.NewFeedService(store, cfg.Feed.DefaultLimit, metrics, log)

	// 异步摄取（可选）：workers > 0 时通过工作池处理通知
	var workerPool *pool.WorkerPool
	if cfg.Ingest.Workers > 0 {
		workerPool = pool.NewWorkerPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize)
		workerPool.Start(ctx)
		log.Info("ingest worker pool started",
			zap.Int("workers", cfg.Ingest.Workers),
			zap.Int("queue_size", cfg.Ingest.QueueSize),
		)
	}

	// 创建 HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		IngestService: ingestService,
		FeedService:   feedService,
		WorkerPool:    workerPool,
		Store:         store,
		Metrics:       metrics,
		Logger:        log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 启动 HTTP 服务器
	go func() {
		log.Info("server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server stopped cleanly")
	}

	if workerPool != nil {
		workerPool.Stop()
	}
}

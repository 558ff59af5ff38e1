package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailfeed/backend/internal/config"
	"mailfeed/backend/internal/health"
	"mailfeed/backend/internal/middleware"
	"mailfeed/backend/internal/monitoring"
	"mailfeed/backend/internal/pool"
	"mailfeed/backend/internal/service"
	"mailfeed/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	IngestService *service.IngestService
	FeedService   *service.FeedService
	WorkerPool    *pool.WorkerPool // 为 nil 时通知在请求内同步处理
	Store         storage.RecordStore
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.PushBodyLimit))

	// 监控中间件（指标可选）
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	notifyHandler := NewNotifyHandler(deps.IngestService, deps.WorkerPool, deps.Logger)
	feedHandler := NewFeedHandler(deps.FeedService)

	// 健康检查
	healthChecker := health.NewHealthChecker(deps.Store, deps.Logger)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"checks":    healthChecker.CheckHealth(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/healthz", gin.WrapF(healthChecker.LiveEndpoint))
	router.GET("/readyz", gin.WrapF(healthChecker.ReadyEndpoint))

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 推送通知入口
	router.POST("/notifications/gmail", notifyHandler.handleNotification)

	// V1 API
	v1 := router.Group("/v1")
	{
		feedRoutes := v1.Group("/feed")
		{
			feedRoutes.GET("", feedHandler.listFeed)
			feedRoutes.GET("/stats", feedHandler.getStats)
			feedRoutes.GET("/:id", feedHandler.getRecord)
			feedRoutes.DELETE("", feedHandler.clearFeed)
		}
	}

	return router
}

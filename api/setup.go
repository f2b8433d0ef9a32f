package api

import (
	"mailrag/api/handlers/documents"
	"mailrag/internal/config"
	"mailrag/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 设置并返回 Gin 路由
// 业务依赖由调用方构建后传入, 这里只负责装配中间件与路由
func SetupRouter(db *gorm.DB, cfg *config.Config, ingestor documents.Ingestor) *gin.Engine {
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())

	// Prometheus 指标收集中间件
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点（不需要口令）
	router.GET("/healthz", HealthCheck())
	router.GET("/ready", ReadinessCheck(db))

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 业务路由
	ingestHandler := documents.NewIngestHandler(ingestor, cfg.API.IngestPassword)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/process-pdf-url", ingestHandler.ProcessPDFURL)
	}

	return router
}

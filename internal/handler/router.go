package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"LeadGrid-App/internal/infrastructure/metrics"
	"LeadGrid-App/internal/usecase"
)

// NewRouter 全エンドポイントを登録した gin エンジンを作成
func NewRouter(gridUseCase usecase.DiscoveryGridUseCase, deletionUseCase usecase.GridDeletionUseCase, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	gridHandler := NewDiscoveryGridHandler(gridUseCase, deletionUseCase)
	cellHandler := NewDiscoveryCellHandler(gridUseCase)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "LeadGrid-App"})
		})

		api.GET("/grids", gridHandler.ListGrids)
		api.POST("/grids", gridHandler.CreateGrid)
		api.GET("/grids/default", gridHandler.GetDefaultGrid)
		api.GET("/grids/:id", gridHandler.GetGrid)
		api.DELETE("/grids/:id", gridHandler.DeleteGrid)
		api.GET("/grids/:id/cells", gridHandler.ListCells)
		api.GET("/grids/:id/geojson", gridHandler.GetGeoJSON)
		api.GET("/grids/:id/overlay", gridHandler.GetOverlay)
		api.POST("/grids/:id/cells/activate", cellHandler.ActivateCell)
		api.GET("/virtual-tiles", gridHandler.GetVirtualTiles)

		api.GET("/cells/:id", cellHandler.GetCell)
		api.POST("/cells/:id/search/start", cellHandler.StartSearch)
		api.POST("/cells/:id/search/result", cellHandler.RecordSearchResult)
		api.POST("/cells/:id/search/abort", cellHandler.AbortSearch)
		api.POST("/cells/:id/subdivide", cellHandler.Subdivide)
		api.POST("/cells/:id/undivide", cellHandler.Undivide)
	}
	return router
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

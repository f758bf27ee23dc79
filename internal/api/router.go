package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"syllabusai/internal/api/middleware"
	"syllabusai/internal/config"
	"syllabusai/internal/metrics"
)

// NewRouter builds the gin engine with the shared middleware chain, the
// health check and the Prometheus endpoint.
func NewRouter(cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)
	if cfg != nil && cfg.API.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.API.MaxUploadBytes
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

package statusapi

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jroosing/goresolv/internal/statusapi/middleware"

	_ "github.com/jroosing/goresolv/internal/statusapi/docs" // swagger docs
)

func registerRoutes(r *gin.Engine, h *Handler, apiKey string) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", h.Health)

	status := r.Group("/status")
	if apiKey != "" {
		status.Use(middleware.RequireAPIKey(apiKey))
	}
	status.GET("/cache", h.Cache)
	status.GET("/queries", h.Queries)
	status.GET("/upstreams", h.Upstreams)
	status.GET("/stats", h.Stats)
}

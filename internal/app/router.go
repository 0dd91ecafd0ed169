package app

import (
	"github.com/gin-gonic/gin"

	"github.com/repstack/repstack-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins:       cfg.AllowedOrigins,
		AuthMiddleware:       middlewareset.Auth,
		HealthcheckHandler:   handlerset.Healthcheck,
		VideoAnalysisHandler: handlerset.VideoAnalysis,
		LibraryHandler:       handlerset.Library,
		SSEHandler:           handlerset.SSE,
	})
}

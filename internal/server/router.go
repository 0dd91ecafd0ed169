package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/repstack/repstack-backend/internal/handlers"
	"github.com/repstack/repstack-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins       []string
	AuthMiddleware       *middleware.AuthMiddleware
	HealthcheckHandler   *handlers.HealthcheckHandler
	VideoAnalysisHandler *handlers.VideoAnalysisHandler
	LibraryHandler       *handlers.LibraryHandler
	SSEHandler           *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("repstack-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	// Every route is open to anonymous callers; identity, when present,
	// scopes session quota and ownership checks.
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.OptionalAuth())
	{
		va := api.Group("/video-analysis")
		va.POST("/sessions", cfg.VideoAnalysisHandler.CreateSession)
		va.GET("/sessions/:id", cfg.VideoAnalysisHandler.GetSession)
		va.PUT("/sessions/:id/edits", cfg.VideoAnalysisHandler.SaveEdits)
		va.POST("/sessions/:id/commit", cfg.VideoAnalysisHandler.Commit)
		va.POST("/sessions/:id/add-to-workout", cfg.VideoAnalysisHandler.AddToWorkout)
		va.POST("/sweep-expired", cfg.VideoAnalysisHandler.SweepExpired)

		api.POST("/library/sweep-new", cfg.LibraryHandler.SweepNewBadges)
	}

	sseGroup := router.Group("/sse")
	sseGroup.Use(cfg.AuthMiddleware.OptionalAuth())
	sseGroup.GET("/stream", cfg.SSEHandler.SSEStream)

	return router
}

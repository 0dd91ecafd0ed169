package app

import (
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/handlers"
	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/sse"
)

type Handlers struct {
	Healthcheck   *handlers.HealthcheckHandler
	VideoAnalysis *handlers.VideoAnalysisHandler
	Library       *handlers.LibraryHandler
	SSE           *handlers.SSEHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services, sseHub *sse.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck:   handlers.NewHealthcheckHandler(db),
		VideoAnalysis: handlers.NewVideoAnalysisHandler(log, serviceset.VideoAnalysis),
		Library:       handlers.NewLibraryHandler(log, serviceset.Library),
		SSE:           handlers.NewSSEHandler(log, sseHub),
	}
}

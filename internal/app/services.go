package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/clients/redis"
	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/services"
	"github.com/repstack/repstack-backend/internal/sse"
)

type Services struct {
	Extractor     services.VideoExtractor
	Quota         services.QuotaGuard
	Importer      services.ImportEngine
	Notifier      services.SessionNotifier
	VideoAnalysis services.VideoAnalysisService
	Library       services.LibraryService

	SSEBus redis.SSEBus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, sseHub *sse.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	// Transcript enrichment is optional; the extractor works from the video
	// URL alone when GCP credentials are absent.
	transcripts, err := services.NewVideoIntelligenceTranscripts(log)
	if err != nil {
		log.Warn("Video Intelligence unavailable; extracting without transcripts", "error", err)
		transcripts = nil
	}

	extractor, err := services.NewLLMVideoExtractor(log, transcripts)
	if err != nil {
		return Services{}, fmt.Errorf("init video extractor: %w", err)
	}

	sseBus, err := redis.NewSSEBus(log)
	if err != nil {
		log.Warn("Redis SSE bus unavailable; events stay local to this replica", "error", err)
		sseBus = nil
	}

	notifier := services.NewSessionNotifier(log, sseHub, sseBus)
	quota := services.NewQuotaGuard(log, reposet.Session)
	importer := services.NewImportEngine(log, reposet.Card)

	videoAnalysis := services.NewVideoAnalysisService(
		db, log,
		reposet.Session,
		reposet.Workout,
		quota,
		importer,
		extractor,
		notifier,
		cfg.SessionSweepEvery,
	)
	library := services.NewLibraryService(db, log, reposet.Card, notifier, cfg.NewBadgeSweepEvery)

	return Services{
		Extractor:     extractor,
		Quota:         quota,
		Importer:      importer,
		Notifier:      notifier,
		VideoAnalysis: videoAnalysis,
		Library:       library,
		SSEBus:        sseBus,
	}, nil
}

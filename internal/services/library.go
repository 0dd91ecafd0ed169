package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
	"github.com/repstack/repstack-backend/internal/sse"
)

type NewBadgeSweepReport struct {
	Cleared   int      `json:"cleared"`
	Exercises []string `json:"exercises"`
}

// LibraryService owns the is_new badge TTL on library cards. This is a plain
// timestamp flip seven days after import and has nothing to do with session
// expiry; the two sweeps just happen to share a worker ticker.
type LibraryService interface {
	SweepNewBadges(ctx context.Context) (*NewBadgeSweepReport, error)
	StartWorker(ctx context.Context)
}

type libraryService struct {
	db       *gorm.DB
	log      *logger.Logger
	cardRepo repos.ExerciseCardRepo
	notifier SessionNotifier

	sweepInterval time.Duration
}

func NewLibraryService(db *gorm.DB, baseLog *logger.Logger, cardRepo repos.ExerciseCardRepo, notifier SessionNotifier, sweepInterval time.Duration) LibraryService {
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &libraryService{
		db:            db,
		log:           baseLog.With("service", "LibraryService"),
		cardRepo:      cardRepo,
		notifier:      notifier,
		sweepInterval: sweepInterval,
	}
}

func (s *libraryService) SweepNewBadges(ctx context.Context) (*NewBadgeSweepReport, error) {
	now := time.Now().UTC()
	due, err := s.cardRepo.ListNewPastDeadline(ctx, nil, now)
	if err != nil {
		return nil, err
	}
	report := &NewBadgeSweepReport{Exercises: []string{}}
	if len(due) == 0 {
		return report, nil
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, card := range due {
		ids = append(ids, card.ID)
		report.Exercises = append(report.Exercises, card.Name)
	}
	if err := s.cardRepo.ClearNewFlags(ctx, nil, ids); err != nil {
		return nil, err
	}
	report.Cleared = len(ids)

	s.log.Info("Cleared is_new badges", "cleared", report.Cleared)
	s.notifier.Notify(ctx, "library", sse.SSEEventLibrarySwept, map[string]any{
		"cleared":   report.Cleared,
		"exercises": report.Exercises,
	})
	return report, nil
}

func (s *libraryService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepNewBadges(ctx); err != nil {
					s.log.Warn("SweepNewBadges failed", "error", err)
				}
			}
		}
	}()
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
)

// MaxLiveSessions caps how many non-expired pending/in_progress sessions one
// owner may hold at once. Advisory capacity control, not a security boundary:
// the count-then-insert is not serialized, so two concurrent creations can
// both pass the check and land at cap+1.
const MaxLiveSessions = 3

type QuotaExceededError struct {
	Current int
	Max     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("session quota exceeded: %d of %d live sessions in use", e.Current, e.Max)
}

type QuotaGuard interface {
	// CheckCanCreate returns a *QuotaExceededError when the owner is at the
	// ceiling. Anonymous sessions (nil owner) are never quota-limited.
	CheckCanCreate(ctx context.Context, tx *gorm.DB, ownerUserID *uuid.UUID, now time.Time) error
}

type quotaGuard struct {
	log         *logger.Logger
	sessionRepo repos.VideoAnalysisSessionRepo
}

func NewQuotaGuard(baseLog *logger.Logger, sessionRepo repos.VideoAnalysisSessionRepo) QuotaGuard {
	return &quotaGuard{
		log:         baseLog.With("service", "QuotaGuard"),
		sessionRepo: sessionRepo,
	}
}

func (g *quotaGuard) CheckCanCreate(ctx context.Context, tx *gorm.DB, ownerUserID *uuid.UUID, now time.Time) error {
	if ownerUserID == nil || *ownerUserID == uuid.Nil {
		return nil
	}
	count, err := g.sessionRepo.CountLiveByOwner(ctx, tx, *ownerUserID, now)
	if err != nil {
		return fmt.Errorf("count live sessions: %w", err)
	}
	if count >= MaxLiveSessions {
		g.log.Debug("Session creation rejected by quota", "owner_user_id", ownerUserID.String(), "current", count, "max", MaxLiveSessions)
		return &QuotaExceededError{Current: int(count), Max: MaxLiveSessions}
	}
	return nil
}

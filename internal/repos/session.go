package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/types"
)

type VideoAnalysisSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.VideoAnalysisSession) (*types.VideoAnalysisSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VideoAnalysisSession, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	CountLiveByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, now time.Time) (int64, error)
	ListExpiredUnfinalized(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.VideoAnalysisSession, error)
}

type videoAnalysisSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoAnalysisSessionRepo(db *gorm.DB, baseLog *logger.Logger) VideoAnalysisSessionRepo {
	repoLog := baseLog.With("repo", "VideoAnalysisSessionRepo")
	return &videoAnalysisSessionRepo{db: db, log: repoLog}
}

func (r *videoAnalysisSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.VideoAnalysisSession) (*types.VideoAnalysisSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *videoAnalysisSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VideoAnalysisSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.VideoAnalysisSession
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *videoAnalysisSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.VideoAnalysisSession{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// CountLiveByOwner counts sessions that still hold quota for an owner:
// pending or in_progress and not yet past their expiry window.
func (r *videoAnalysisSessionRepo) CountLiveByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.VideoAnalysisSession{}).
		Where("owner_user_id = ?", ownerUserID).
		Where("status IN ?", []types.SessionStatus{types.SessionStatusPending, types.SessionStatusInProgress}).
		Where("expires_at > ?", now).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *videoAnalysisSessionRepo) ListExpiredUnfinalized(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.VideoAnalysisSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.VideoAnalysisSession
	q := transaction.WithContext(ctx).
		Where("status IN ?", []types.SessionStatus{types.SessionStatusPending, types.SessionStatusInProgress}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

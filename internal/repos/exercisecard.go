package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/types"
)

type ExerciseCardRepo interface {
	Create(ctx context.Context, tx *gorm.DB, card *types.ExerciseCard) (*types.ExerciseCard, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ExerciseCard, error)
	FirstByNameFold(ctx context.Context, tx *gorm.DB, name string) (*types.ExerciseCard, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	ListNewPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.ExerciseCard, error)
	ClearNewFlags(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type exerciseCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExerciseCardRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseCardRepo {
	repoLog := baseLog.With("repo", "ExerciseCardRepo")
	return &exerciseCardRepo{db: db, log: repoLog}
}

func (r *exerciseCardRepo) Create(ctx context.Context, tx *gorm.DB, card *types.ExerciseCard) (*types.ExerciseCard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(card).Error; err != nil {
		return nil, err
	}
	return card, nil
}

func (r *exerciseCardRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ExerciseCard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.ExerciseCard
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// FirstByNameFold is the dedup lookup: case-insensitive exact name match,
// oldest row first. Returns (nil, nil) when no card matches. Name has no
// uniqueness constraint, so when duplicates exist after case-folding this
// deliberately picks the earliest one; which duplicate "should" win is
// undefined.
func (r *exerciseCardRepo) FirstByNameFold(ctx context.Context, tx *gorm.DB, name string) (*types.ExerciseCard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.ExerciseCard
	err := transaction.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		Order("created_at ASC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *exerciseCardRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.ExerciseCard{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *exerciseCardRepo) ListNewPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time) ([]*types.ExerciseCard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ExerciseCard
	if err := transaction.WithContext(ctx).
		Where("is_new = ?", true).
		Where("new_expires_at IS NOT NULL AND new_expires_at <= ?", now).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *exerciseCardRepo) ClearNewFlags(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.ExerciseCard{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_new": false, "new_expires_at": nil}).Error
}

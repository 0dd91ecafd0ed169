package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/types"
)

type WorkoutRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Workout, error)
	NextPosition(ctx context.Context, tx *gorm.DB, workoutID uuid.UUID) (int, error)
	AppendExercise(ctx context.Context, tx *gorm.DB, entry *types.WorkoutExercise) (*types.WorkoutExercise, error)
}

type workoutRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkoutRepo(db *gorm.DB, baseLog *logger.Logger) WorkoutRepo {
	repoLog := baseLog.With("repo", "WorkoutRepo")
	return &workoutRepo{db: db, log: repoLog}
}

func (r *workoutRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Workout, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Workout
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *workoutRepo) NextPosition(ctx context.Context, tx *gorm.DB, workoutID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var max *int
	if err := transaction.WithContext(ctx).
		Model(&types.WorkoutExercise{}).
		Where("workout_id = ?", workoutID).
		Select("MAX(position)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *workoutRepo) AppendExercise(ctx context.Context, tx *gorm.DB, entry *types.WorkoutExercise) (*types.WorkoutExercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

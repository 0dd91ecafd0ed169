package app

import (
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
)

type Repos struct {
	Session repos.VideoAnalysisSessionRepo
	Card    repos.ExerciseCardRepo
	Workout repos.WorkoutRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Session: repos.NewVideoAnalysisSessionRepo(db, log),
		Card:    repos.NewExerciseCardRepo(db, log),
		Workout: repos.NewWorkoutRepo(db, log),
	}
}

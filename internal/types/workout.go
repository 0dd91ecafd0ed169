package types

import (
	"time"

	"github.com/google/uuid"
)

// Workout is the minimal slice of the workout domain the staging pipeline
// needs: enough to append imported exercises and hand the client back the
// identifiers it navigates with.
type Workout struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID *uuid.UUID `gorm:"type:uuid;index;column:program_id" json:"program_id,omitempty"`
	Name      string     `gorm:"not null;column:name" json:"name"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (Workout) TableName() string {
	return "workout"
}

// WorkoutExercise links a library card into a workout's ordered exercise list.
type WorkoutExercise struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkoutID      uuid.UUID `gorm:"type:uuid;not null;index;column:workout_id" json:"workout_id"`
	ExerciseCardID uuid.UUID `gorm:"type:uuid;not null;index;column:exercise_card_id" json:"exercise_card_id"`
	Position       int       `gorm:"not null;column:position" json:"position"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (WorkoutExercise) TableName() string {
	return "workout_exercise"
}

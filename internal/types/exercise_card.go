package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ExerciseType string

const (
	ExerciseTypeStrength   ExerciseType = "strength"
	ExerciseTypeCardio     ExerciseType = "cardio"
	ExerciseTypeMobility   ExerciseType = "mobility"
	ExerciseTypePlyometric ExerciseType = "plyometric"
	ExerciseTypePower      ExerciseType = "power"
)

// NewCardTTL is how long a freshly imported card keeps its is_new badge.
const NewCardTTL = 7 * 24 * time.Hour

// ExerciseCard is the canonical library record. Name is the dedup key,
// matched case-insensitively by the import engine. There is deliberately no
// uniqueness constraint on it; see the import engine notes.
type ExerciseCard struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string         `gorm:"not null;index;column:name" json:"name"`
	VideoURL             string         `gorm:"column:video_url" json:"video_url"`
	StartTime            float64        `gorm:"column:start_time" json:"start_time"`
	EndTime              float64        `gorm:"column:end_time" json:"end_time"`
	Instructions         datatypes.JSON `gorm:"type:jsonb;column:instructions" json:"instructions"`                   // []string
	CoachingCues         datatypes.JSON `gorm:"type:jsonb;column:coaching_cues" json:"coaching_cues"`                 // []string
	ScreenshotTimestamps datatypes.JSON `gorm:"type:jsonb;column:screenshot_timestamps" json:"screenshot_timestamps"` // []float64
	Difficulty           Difficulty     `gorm:"column:difficulty" json:"difficulty"`
	Equipment            datatypes.JSON `gorm:"type:jsonb;column:equipment" json:"equipment"` // []string
	ExerciseType         ExerciseType   `gorm:"not null;default:strength;column:exercise_type" json:"exercise_type"`
	TracksWeight         bool           `gorm:"not null;default:true;column:tracks_weight" json:"tracks_weight"`
	TracksReps           bool           `gorm:"not null;default:true;column:tracks_reps" json:"tracks_reps"`
	TracksDuration       bool           `gorm:"not null;default:false;column:tracks_duration" json:"tracks_duration"`
	TracksDistance       bool           `gorm:"not null;default:false;column:tracks_distance" json:"tracks_distance"`
	IsNew                bool           `gorm:"not null;default:false;index;column:is_new" json:"is_new"`
	NewExpiresAt         *time.Time     `gorm:"column:new_expires_at" json:"new_expires_at,omitempty"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
}

func (ExerciseCard) TableName() string {
	return "exercise_card"
}

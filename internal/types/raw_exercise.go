package types

// Pure JSON contracts for the video-analysis staging pipeline. Not DB models.
// A RawExercise has no id of its own: it is addressed by its position in the
// session's exercise array, and the overlay/committed maps are keyed by that
// same index. Reordering the raw array would desynchronize both maps, so the
// array is treated as immutable once the session is created.

import "github.com/google/uuid"

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// RawExercise is one candidate exercise as the extractor produced it.
type RawExercise struct {
	Name                 string     `json:"name"`
	StartTime            float64    `json:"start_time"`
	EndTime              float64    `json:"end_time"`
	Instructions         []string   `json:"instructions"`
	CoachingCues         []string   `json:"coaching_cues"`
	ScreenshotTimestamps []float64  `json:"screenshot_timestamps"`
	Difficulty           Difficulty `json:"difficulty"`
	Equipment            []string   `json:"equipment"`
}

// EditOverlay holds only the fields the user changed for one staged exercise.
// A nil field means "use the raw value". Array fields replace wholesale and
// are pointers so "cleared to empty" is a present field, distinct from
// "untouched", and survives the jsonb round-trip despite omitempty.
type EditOverlay struct {
	Name                 *string     `json:"name,omitempty"`
	StartTime            *float64    `json:"start_time,omitempty"`
	EndTime              *float64    `json:"end_time,omitempty"`
	Instructions         *[]string   `json:"instructions,omitempty"`
	CoachingCues         *[]string   `json:"coaching_cues,omitempty"`
	ScreenshotTimestamps *[]float64  `json:"screenshot_timestamps,omitempty"`
	Difficulty           *Difficulty `json:"difficulty,omitempty"`
	Equipment            *[]string   `json:"equipment,omitempty"`
}

func (o *EditOverlay) IsEmpty() bool {
	if o == nil {
		return true
	}
	return o.Name == nil &&
		o.StartTime == nil &&
		o.EndTime == nil &&
		o.Instructions == nil &&
		o.CoachingCues == nil &&
		o.ScreenshotTimestamps == nil &&
		o.Difficulty == nil &&
		o.Equipment == nil
}

// StagedExercise is the derived review/commit view of one index: the raw
// exercise with its overlay applied plus commit bookkeeping. Never persisted.
type StagedExercise struct {
	RawExercise
	OriginalIndex   int        `json:"original_index"`
	IsEdited        bool       `json:"is_edited"`
	IsSaved         bool       `json:"is_saved"`
	SavedExerciseID *uuid.UUID `json:"saved_exercise_id,omitempty"`
}

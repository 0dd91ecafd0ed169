package staging

import (
	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/types"
)

// Project merges each raw exercise with its stored overlay and commit state
// into the staged view the review UI and the import engine both consume.
// Output order is the raw order, never re-sorted: every downstream map is
// keyed by original index, so position stability is load-bearing.
func Project(raw []types.RawExercise, overlays map[int]types.EditOverlay, committed map[int]uuid.UUID) []types.StagedExercise {
	out := make([]types.StagedExercise, len(raw))
	for i, rx := range raw {
		staged := types.StagedExercise{
			RawExercise:   rx,
			OriginalIndex: i,
		}
		if overlay, ok := overlays[i]; ok && !overlay.IsEmpty() {
			staged.RawExercise = ApplyOverlay(rx, overlay)
			staged.IsEdited = true
		}
		if id, ok := committed[i]; ok {
			saved := id
			staged.IsSaved = true
			staged.SavedExerciseID = &saved
		}
		out[i] = staged
	}
	return out
}

// ApplyOverlay returns the raw exercise with overlay fields substituted.
// Slice fields in the overlay replace the raw slice wholesale; there is no
// element-level splicing.
func ApplyOverlay(raw types.RawExercise, overlay types.EditOverlay) types.RawExercise {
	out := raw
	if overlay.Name != nil {
		out.Name = *overlay.Name
	}
	if overlay.StartTime != nil {
		out.StartTime = *overlay.StartTime
	}
	if overlay.EndTime != nil {
		out.EndTime = *overlay.EndTime
	}
	if overlay.Instructions != nil {
		out.Instructions = *overlay.Instructions
	}
	if overlay.CoachingCues != nil {
		out.CoachingCues = *overlay.CoachingCues
	}
	if overlay.ScreenshotTimestamps != nil {
		out.ScreenshotTimestamps = *overlay.ScreenshotTimestamps
	}
	if overlay.Difficulty != nil {
		out.Difficulty = *overlay.Difficulty
	}
	if overlay.Equipment != nil {
		out.Equipment = *overlay.Equipment
	}
	return out
}

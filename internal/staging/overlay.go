package staging

import (
	"slices"

	"github.com/repstack/repstack-backend/internal/types"
)

// ComputeOverlay diffs an edited staged exercise against its raw original and
// returns the sparse overlay to persist. Only fields whose value differs are
// included; slice fields compare deep and order-sensitive. A fully unchanged
// exercise yields nil, which callers treat as "nothing to persist".
//
// The session service renormalizes every incoming overlay through this both
// when edits are saved and again when a commit carries fresh edits, so an
// edit that merely restores the raw value shrinks out of the stored overlay
// instead of persisting as a no-op.
func ComputeOverlay(original types.RawExercise, edited types.StagedExercise) *types.EditOverlay {
	overlay := &types.EditOverlay{}

	if edited.Name != original.Name {
		v := edited.Name
		overlay.Name = &v
	}
	if edited.StartTime != original.StartTime {
		v := edited.StartTime
		overlay.StartTime = &v
	}
	if edited.EndTime != original.EndTime {
		v := edited.EndTime
		overlay.EndTime = &v
	}
	if !slices.Equal(edited.Instructions, original.Instructions) {
		overlay.Instructions = cloneSlice(edited.Instructions)
	}
	if !slices.Equal(edited.CoachingCues, original.CoachingCues) {
		overlay.CoachingCues = cloneSlice(edited.CoachingCues)
	}
	if !slices.Equal(edited.ScreenshotTimestamps, original.ScreenshotTimestamps) {
		overlay.ScreenshotTimestamps = cloneSlice(edited.ScreenshotTimestamps)
	}
	if edited.Difficulty != original.Difficulty {
		v := edited.Difficulty
		overlay.Difficulty = &v
	}
	if !slices.Equal(edited.Equipment, original.Equipment) {
		overlay.Equipment = cloneSlice(edited.Equipment)
	}

	if overlay.IsEmpty() {
		return nil
	}
	return overlay
}

// cloneSlice always yields a non-nil slice behind the pointer so a list
// cleared to empty stays a present overlay field on the wire.
func cloneSlice[T comparable](in []T) *[]T {
	out := make([]T, len(in))
	copy(out, in)
	return &out
}

// MergeOverlay layers a later overlay on top of an earlier one, field by
// field. Used when a commit request carries fresh edits for an index that
// already has a saved overlay.
func MergeOverlay(base, next types.EditOverlay) types.EditOverlay {
	out := base
	if next.Name != nil {
		out.Name = next.Name
	}
	if next.StartTime != nil {
		out.StartTime = next.StartTime
	}
	if next.EndTime != nil {
		out.EndTime = next.EndTime
	}
	if next.Instructions != nil {
		out.Instructions = next.Instructions
	}
	if next.CoachingCues != nil {
		out.CoachingCues = next.CoachingCues
	}
	if next.ScreenshotTimestamps != nil {
		out.ScreenshotTimestamps = next.ScreenshotTimestamps
	}
	if next.Difficulty != nil {
		out.Difficulty = next.Difficulty
	}
	if next.Equipment != nil {
		out.Equipment = next.Equipment
	}
	return out
}

package staging

import (
	"testing"

	"github.com/repstack/repstack-backend/internal/types"
)

func sampleRaw() types.RawExercise {
	return types.RawExercise{
		Name:                 "Goblet Squat",
		StartTime:            12.5,
		EndTime:              48.0,
		Instructions:         []string{"Hold the dumbbell at chest height", "Sit between your heels"},
		CoachingCues:         []string{"Elbows inside knees"},
		ScreenshotTimestamps: []float64{14.0, 30.5},
		Difficulty:           types.DifficultyBeginner,
		Equipment:            []string{"dumbbell"},
	}
}

func stagedFrom(raw types.RawExercise) types.StagedExercise {
	return types.StagedExercise{RawExercise: raw, OriginalIndex: 0}
}

func TestComputeOverlayUnchangedReturnsNil(t *testing.T) {
	raw := sampleRaw()
	if got := ComputeOverlay(raw, stagedFrom(raw)); got != nil {
		t.Fatalf("ComputeOverlay on identical exercise = %+v, want nil", got)
	}
}

func TestComputeOverlaySingleFieldChanges(t *testing.T) {
	raw := sampleRaw()

	cases := []struct {
		name   string
		mutate func(*types.StagedExercise)
		check  func(*testing.T, *types.EditOverlay)
	}{
		{
			name:   "name",
			mutate: func(st *types.StagedExercise) { st.Name = "Front Squat" },
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.Name == nil || *o.Name != "Front Squat" {
					t.Fatalf("overlay.Name = %v, want Front Squat", o.Name)
				}
			},
		},
		{
			name:   "start_time",
			mutate: func(st *types.StagedExercise) { st.StartTime = 10.0 },
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.StartTime == nil || *o.StartTime != 10.0 {
					t.Fatalf("overlay.StartTime = %v, want 10.0", o.StartTime)
				}
			},
		},
		{
			name:   "instructions_reordered",
			mutate: func(st *types.StagedExercise) {
				st.Instructions = []string{"Sit between your heels", "Hold the dumbbell at chest height"}
			},
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.Instructions == nil || len(*o.Instructions) != 2 {
					t.Fatalf("overlay.Instructions = %v, want reordered pair", o.Instructions)
				}
			},
		},
		{
			name:   "instructions_cleared",
			mutate: func(st *types.StagedExercise) { st.Instructions = nil },
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.Instructions == nil || len(*o.Instructions) != 0 {
					t.Fatalf("overlay.Instructions = %v, want present empty list", o.Instructions)
				}
			},
		},
		{
			name:   "difficulty",
			mutate: func(st *types.StagedExercise) { st.Difficulty = types.DifficultyAdvanced },
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.Difficulty == nil || *o.Difficulty != types.DifficultyAdvanced {
					t.Fatalf("overlay.Difficulty = %v, want advanced", o.Difficulty)
				}
			},
		},
		{
			name:   "equipment",
			mutate: func(st *types.StagedExercise) { st.Equipment = []string{"kettlebell"} },
			check: func(t *testing.T, o *types.EditOverlay) {
				if o.Equipment == nil || len(*o.Equipment) != 1 || (*o.Equipment)[0] != "kettlebell" {
					t.Fatalf("overlay.Equipment = %v, want [kettlebell]", o.Equipment)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			edited := stagedFrom(raw)
			tc.mutate(&edited)
			overlay := ComputeOverlay(raw, edited)
			if overlay == nil {
				t.Fatal("ComputeOverlay returned nil for a changed exercise")
			}
			tc.check(t, overlay)
			if n := overlayFieldCount(overlay); n != 1 {
				t.Fatalf("overlay has %d populated fields, want exactly 1: %+v", n, overlay)
			}
		})
	}
}

func overlayFieldCount(o *types.EditOverlay) int {
	n := 0
	if o.Name != nil {
		n++
	}
	if o.StartTime != nil {
		n++
	}
	if o.EndTime != nil {
		n++
	}
	if o.Instructions != nil {
		n++
	}
	if o.CoachingCues != nil {
		n++
	}
	if o.ScreenshotTimestamps != nil {
		n++
	}
	if o.Difficulty != nil {
		n++
	}
	if o.Equipment != nil {
		n++
	}
	return n
}

func TestMergeOverlayLaterFieldsWin(t *testing.T) {
	name1 := "Front Squat"
	name2 := "Back Squat"
	start := 5.0

	base := types.EditOverlay{Name: &name1, StartTime: &start}
	next := types.EditOverlay{Name: &name2}

	merged := MergeOverlay(base, next)
	if merged.Name == nil || *merged.Name != "Back Squat" {
		t.Fatalf("merged.Name = %v, want Back Squat", merged.Name)
	}
	if merged.StartTime == nil || *merged.StartTime != 5.0 {
		t.Fatalf("merged.StartTime = %v, want base value preserved", merged.StartTime)
	}
}

package staging

import (
	"testing"

	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/types"
)

func rawList(names ...string) []types.RawExercise {
	out := make([]types.RawExercise, 0, len(names))
	for i, n := range names {
		out = append(out, types.RawExercise{
			Name:       n,
			StartTime:  float64(i * 30),
			EndTime:    float64(i*30 + 25),
			Difficulty: types.DifficultyIntermediate,
		})
	}
	return out
}

func TestProjectPreservesLengthAndIndex(t *testing.T) {
	raw := rawList("Box Jump", "Goblet Squat", "Farmers Carry", "Plank")

	staged := Project(raw, nil, nil)
	if len(staged) != len(raw) {
		t.Fatalf("Project returned %d items, want %d", len(staged), len(raw))
	}
	for i, st := range staged {
		if st.OriginalIndex != i {
			t.Fatalf("staged[%d].OriginalIndex = %d, want %d", i, st.OriginalIndex, i)
		}
		if st.Name != raw[i].Name {
			t.Fatalf("staged[%d].Name = %q, want %q (order must be preserved)", i, st.Name, raw[i].Name)
		}
		if st.IsEdited || st.IsSaved {
			t.Fatalf("staged[%d] has edit/save flags set with no overlays or commits", i)
		}
	}
}

func TestProjectOverlayWinsFieldByField(t *testing.T) {
	raw := rawList("Box Jump", "Goblet Squat")
	newName := "Depth Jump"
	overlays := map[int]types.EditOverlay{
		0: {Name: &newName, Equipment: &[]string{"plyo box"}},
	}

	staged := Project(raw, overlays, nil)
	if staged[0].Name != "Depth Jump" {
		t.Fatalf("staged[0].Name = %q, want overlay value", staged[0].Name)
	}
	if staged[0].StartTime != raw[0].StartTime {
		t.Fatalf("staged[0].StartTime = %v, want raw value for untouched field", staged[0].StartTime)
	}
	if len(staged[0].Equipment) != 1 || staged[0].Equipment[0] != "plyo box" {
		t.Fatalf("staged[0].Equipment = %v, want wholesale replacement", staged[0].Equipment)
	}
	if !staged[0].IsEdited {
		t.Fatal("staged[0].IsEdited = false, want true")
	}
	if staged[1].IsEdited {
		t.Fatal("staged[1].IsEdited = true for index without overlay")
	}
}

func TestProjectEmptyOverlayIsNotAnEdit(t *testing.T) {
	raw := rawList("Box Jump")
	staged := Project(raw, map[int]types.EditOverlay{0: {}}, nil)
	if staged[0].IsEdited {
		t.Fatal("empty overlay must not mark the exercise edited")
	}
}

func TestProjectCommitState(t *testing.T) {
	raw := rawList("Box Jump", "Goblet Squat", "Plank")
	savedID := uuid.New()
	committed := map[int]uuid.UUID{1: savedID}

	staged := Project(raw, nil, committed)
	if staged[0].IsSaved || staged[2].IsSaved {
		t.Fatal("uncommitted indices must not be marked saved")
	}
	if !staged[1].IsSaved {
		t.Fatal("staged[1].IsSaved = false, want true")
	}
	if staged[1].SavedExerciseID == nil || *staged[1].SavedExerciseID != savedID {
		t.Fatalf("staged[1].SavedExerciseID = %v, want %s", staged[1].SavedExerciseID, savedID)
	}
}

func TestViewStateSelectionLifecycle(t *testing.T) {
	raw := rawList("Box Jump", "Goblet Squat", "Plank")
	sessionID := uuid.New()

	state := Apply(NewViewState(), Action{
		Kind:      ActionLoadSession,
		SessionID: sessionID,
		Staged:    Project(raw, nil, nil),
	})
	if state.SessionID != sessionID || len(state.Staged) != 3 {
		t.Fatalf("load_session produced unexpected state: %+v", state)
	}

	state = Apply(state, Action{Kind: ActionToggleSelect, Index: 1})
	if !state.Selected[1] {
		t.Fatal("toggle_select did not select index 1")
	}
	state = Apply(state, Action{Kind: ActionToggleSelect, Index: 1})
	if state.Selected[1] {
		t.Fatal("toggle_select did not deselect index 1")
	}

	state = Apply(state, Action{Kind: ActionSelectRemaining})
	if len(state.Selected) != 3 {
		t.Fatalf("select_remaining selected %d indices, want 3", len(state.Selected))
	}

	id := uuid.New()
	state = Apply(state, Action{Kind: ActionMarkCommitted, Committed: map[int]uuid.UUID{0: id}})
	if !state.Staged[0].IsSaved || state.Selected[0] {
		t.Fatal("mark_committed must set IsSaved and drop the index from the selection")
	}

	// A saved index can no longer be selected.
	state = Apply(state, Action{Kind: ActionToggleSelect, Index: 0})
	if state.Selected[0] {
		t.Fatal("toggle_select selected an already-saved index")
	}
}

func TestViewStateEditDoesNotMutatePrior(t *testing.T) {
	raw := rawList("Box Jump")
	before := Apply(NewViewState(), Action{Kind: ActionLoadSession, Staged: Project(raw, nil, nil)})

	newName := "Depth Jump"
	after := Apply(before, Action{Kind: ActionEdit, Index: 0, Overlay: &types.EditOverlay{Name: &newName}})

	if before.Staged[0].Name != "Box Jump" {
		t.Fatalf("prior state mutated: %q", before.Staged[0].Name)
	}
	if after.Staged[0].Name != "Depth Jump" || !after.Staged[0].IsEdited {
		t.Fatalf("edit not applied: %+v", after.Staged[0])
	}
}

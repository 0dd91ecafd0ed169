package staging

import (
	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/types"
)

// ViewState is the explicit, serializable state behind the review screen:
// which session is loaded, which indices are selected for commit, and which
// card is expanded. Updates flow through Apply so every transition is
// testable; nothing here is ambient.
type ViewState struct {
	SessionID     uuid.UUID              `json:"session_id"`
	Staged        []types.StagedExercise `json:"staged"`
	Selected      map[int]bool           `json:"selected"`
	ExpandedIndex int                    `json:"expanded_index"` // -1 = none
}

func NewViewState() ViewState {
	return ViewState{Selected: map[int]bool{}, ExpandedIndex: -1}
}

type ActionKind string

const (
	ActionLoadSession     ActionKind = "load_session"
	ActionToggleSelect    ActionKind = "toggle_select"
	ActionSelectRemaining ActionKind = "select_remaining"
	ActionClearSelection  ActionKind = "clear_selection"
	ActionExpand          ActionKind = "expand"
	ActionCollapse        ActionKind = "collapse"
	ActionEdit            ActionKind = "edit"
	ActionMarkCommitted   ActionKind = "mark_committed"
)

type Action struct {
	Kind      ActionKind
	SessionID uuid.UUID
	Index     int
	Staged    []types.StagedExercise
	Overlay   *types.EditOverlay
	Committed map[int]uuid.UUID
}

// Apply returns the next view state for an action. Unknown actions and
// out-of-range indices leave the state unchanged.
func Apply(state ViewState, action Action) ViewState {
	switch action.Kind {
	case ActionLoadSession:
		next := NewViewState()
		next.SessionID = action.SessionID
		next.Staged = action.Staged
		return next

	case ActionToggleSelect:
		if !indexInRange(state, action.Index) || state.Staged[action.Index].IsSaved {
			return state
		}
		next := state
		next.Selected = cloneSelection(state.Selected)
		if next.Selected[action.Index] {
			delete(next.Selected, action.Index)
		} else {
			next.Selected[action.Index] = true
		}
		return next

	case ActionSelectRemaining:
		next := state
		next.Selected = map[int]bool{}
		for _, st := range state.Staged {
			if !st.IsSaved {
				next.Selected[st.OriginalIndex] = true
			}
		}
		return next

	case ActionClearSelection:
		next := state
		next.Selected = map[int]bool{}
		return next

	case ActionExpand:
		if !indexInRange(state, action.Index) {
			return state
		}
		next := state
		next.ExpandedIndex = action.Index
		return next

	case ActionCollapse:
		next := state
		next.ExpandedIndex = -1
		return next

	case ActionEdit:
		if !indexInRange(state, action.Index) || action.Overlay == nil {
			return state
		}
		if state.Staged[action.Index].IsSaved {
			return state
		}
		next := state
		next.Staged = cloneStaged(state.Staged)
		st := &next.Staged[action.Index]
		st.RawExercise = ApplyOverlay(st.RawExercise, *action.Overlay)
		st.IsEdited = true
		return next

	case ActionMarkCommitted:
		next := state
		next.Staged = cloneStaged(state.Staged)
		next.Selected = cloneSelection(state.Selected)
		for i, id := range action.Committed {
			if i < 0 || i >= len(next.Staged) {
				continue
			}
			saved := id
			next.Staged[i].IsSaved = true
			next.Staged[i].SavedExerciseID = &saved
			delete(next.Selected, i)
		}
		return next
	}
	return state
}

func indexInRange(state ViewState, i int) bool {
	return i >= 0 && i < len(state.Staged)
}

func cloneSelection(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStaged(in []types.StagedExercise) []types.StagedExercise {
	out := make([]types.StagedExercise, len(in))
	copy(out, in)
	return out
}

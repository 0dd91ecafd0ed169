package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/apierr"
	"github.com/repstack/repstack-backend/internal/types"
)

func TestCreateSessionRejectsBadURL(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))

	cases := []string{"", "not a url at all://", "ftp://videos.example.com/x.mp4"}
	for _, raw := range cases {
		_, err := env.service.CreateSession(context.Background(), nil, raw, nil)
		var ae *apierr.Error
		if !errors.As(err, &ae) || ae.Status != http.StatusBadRequest {
			t.Fatalf("CreateSession(%q) err = %v, want 400 apierr", raw, err)
		}
	}
	if env.extractor.calls != 0 {
		t.Fatalf("extractor called %d times for invalid URLs, want 0", env.extractor.calls)
	}
}

func TestCreateSessionExtractorFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.extractor.err = fmt.Errorf("model unavailable")

	_, err := env.service.CreateSession(context.Background(), nil, "https://videos.example.com/s.mp4", nil)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 apierr", err)
	}

	// no half-created session rows
	var count int64
	if err := env.db.Model(&types.VideoAnalysisSession{}).Count(&count).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("found %d session rows after extractor failure, want 0", count)
	}
}

func TestCommitSubsetKeepsSessionInProgress(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat", "Box Jump", "Plank"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	if view.Status != types.SessionStatusPending {
		t.Fatalf("fresh session status = %s, want pending", view.Status)
	}

	res, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{0},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.SessionStatus != types.SessionStatusInProgress {
		t.Fatalf("status after strict subset = %s, want in_progress", res.SessionStatus)
	}

	// MarkComplete is advisory; a subset still cannot complete the session.
	res, err = env.service.Commit(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{1},
		MarkComplete:    true,
	})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res.SessionStatus != types.SessionStatusInProgress {
		t.Fatalf("status = %s, want in_progress (one index left)", res.SessionStatus)
	}
}

func TestCommitAllRemainingCompletesSession(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat", "Box Jump", "Plank"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	if _, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{0}}); err != nil {
		t.Fatalf("partial commit: %v", err)
	}

	res, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{1, 2}})
	if err != nil {
		t.Fatalf("final commit: %v", err)
	}
	if res.SessionStatus != types.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed", res.SessionStatus)
	}

	// completed is terminal: no further commits or edits
	_, err = env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{0}})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusConflict {
		t.Fatalf("commit on completed session err = %v, want 409", err)
	}
	_, err = env.service.SaveEdits(ctx, nil, view.ID, map[int]types.EditOverlay{0: {}})
	if !errors.As(err, &ae) || ae.Status != http.StatusConflict {
		t.Fatalf("edits on completed session err = %v, want 409", err)
	}
}

func TestCommitAppliesFreshEditsBeforeImport(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	ctx := context.Background()

	view := env.createSession(t, nil)

	// a saved edit, then a further rename sent with the commit itself
	firstRename := "Paused Front Squat"
	if _, err := env.service.SaveEdits(ctx, nil, view.ID, map[int]types.EditOverlay{
		0: {Name: &firstRename},
	}); err != nil {
		t.Fatalf("save edits: %v", err)
	}

	finalRename := "Tempo Front Squat"
	res, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{0},
		EditedExercises: map[int]types.EditOverlay{0: {Name: &finalRename}},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(res.Exercises) != 1 || res.Exercises[0].Name != "Tempo Front Squat" {
		t.Fatalf("committed exercises = %+v, want the post-save rename", res.Exercises)
	}

	card, err := env.cardRepo.FirstByNameFold(ctx, nil, "tempo front squat")
	if err != nil || card == nil {
		t.Fatalf("library lookup after commit: card=%v err=%v", card, err)
	}
}

func TestSaveEditsClearedListPersists(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	if _, err := env.service.SaveEdits(ctx, nil, view.ID, map[int]types.EditOverlay{
		0: {Instructions: &[]string{}},
	}); err != nil {
		t.Fatalf("save edits: %v", err)
	}

	got, err := env.service.GetSession(ctx, nil, view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.Exercises[0].IsEdited {
		t.Fatal("clearing a list must mark the exercise edited")
	}
	if len(got.Exercises[0].Instructions) != 0 {
		t.Fatalf("Instructions = %v, want cleared list after reload", got.Exercises[0].Instructions)
	}
}

func TestSaveEditsRevertDropsOverlay(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	rename := "Paused Front Squat"
	if _, err := env.service.SaveEdits(ctx, nil, view.ID, map[int]types.EditOverlay{
		0: {Name: &rename},
	}); err != nil {
		t.Fatalf("save rename: %v", err)
	}

	original := "Front Squat"
	got, err := env.service.SaveEdits(ctx, nil, view.ID, map[int]types.EditOverlay{
		0: {Name: &original},
	})
	if err != nil {
		t.Fatalf("save revert: %v", err)
	}
	if got.Exercises[0].IsEdited {
		t.Fatal("edit that restores the raw value must not leave the exercise marked edited")
	}
	if got.Exercises[0].Name != "Front Squat" {
		t.Fatalf("Name = %q, want raw value", got.Exercises[0].Name)
	}
}

func TestGetSessionProjectsCommitState(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat", "Plank"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	if _, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{1}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := env.service.GetSession(ctx, nil, view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Exercises) != 2 {
		t.Fatalf("projected %d exercises, want 2", len(got.Exercises))
	}
	if got.Exercises[0].IsSaved {
		t.Fatal("index 0 marked saved without a commit")
	}
	if !got.Exercises[1].IsSaved || got.Exercises[1].SavedExerciseID == nil {
		t.Fatal("index 1 should be saved with its library id")
	}
}

func TestOwnedSessionHiddenFromOtherUsers(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	ctx := context.Background()

	owner := uuid.New()
	view := env.createSession(t, &owner)

	stranger := uuid.New()
	_, err := env.service.GetSession(ctx, &stranger, view.ID)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusForbidden {
		t.Fatalf("stranger access err = %v, want 403", err)
	}
	if _, err := env.service.GetSession(ctx, &owner, view.ID); err != nil {
		t.Fatalf("owner access: %v", err)
	}
}

func TestExpiryForceCommitsRemaining(t *testing.T) {
	env := newTestEnv(t, extractionOf("A Press", "B Press", "C Press", "D Press", "E Press"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	if _, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{0, 1}}); err != nil {
		t.Fatalf("partial commit: %v", err)
	}
	env.forceExpire(t, view.ID)

	report, err := env.service.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if report.Finalized != 1 {
		t.Fatalf("sweep finalized %d sessions, want 1", report.Finalized)
	}

	got, err := env.service.GetSession(ctx, nil, view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != types.SessionStatusCompleted {
		t.Fatalf("post-sweep status = %s, want completed", got.Status)
	}
	for i, ex := range got.Exercises {
		if !ex.IsSaved {
			t.Fatalf("exercise %d not saved after forced finalization", i)
		}
	}
	if count := env.cardCount(t); count != 5 {
		t.Fatalf("library has %d cards, want 5 (sweep commits exactly the remaining 3)", count)
	}
}

func TestLazyExpiryOnRead(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat", "Plank"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	env.forceExpire(t, view.ID)

	got, err := env.service.GetSession(ctx, nil, view.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != types.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed (read finalizes past-deadline sessions)", got.Status)
	}
	if count := env.cardCount(t); count != 2 {
		t.Fatalf("library has %d cards, want 2", count)
	}
}

func TestAddToWorkoutAppendsCards(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat", "Box Jump"))
	ctx := context.Background()

	programID := uuid.New()
	workout := &types.Workout{ID: uuid.New(), ProgramID: &programID, Name: "Lower A"}
	if err := env.db.Create(workout).Error; err != nil {
		t.Fatalf("seed workout: %v", err)
	}

	view := env.createSession(t, nil)
	res, err := env.service.AddToWorkout(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{0, 1},
	}, workout.ID)
	if err != nil {
		t.Fatalf("AddToWorkout: %v", err)
	}
	if res.WorkoutID != workout.ID {
		t.Fatalf("result workout id = %s, want %s", res.WorkoutID, workout.ID)
	}
	if res.ProgramID == nil || *res.ProgramID != programID {
		t.Fatalf("result program id = %v, want %s", res.ProgramID, programID)
	}
	if res.SessionStatus != types.SessionStatusCompleted {
		t.Fatalf("status = %s, want completed", res.SessionStatus)
	}

	var entries []types.WorkoutExercise
	if err := env.db.Where("workout_id = ?", workout.ID).Order("position ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load workout entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("workout has %d entries, want 2", len(entries))
	}
	if entries[0].Position != 0 || entries[1].Position != 1 {
		t.Fatalf("positions = %d,%d, want 0,1", entries[0].Position, entries[1].Position)
	}
}

func TestAddToWorkoutUnknownWorkout(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	view := env.createSession(t, nil)

	_, err := env.service.AddToWorkout(context.Background(), CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{0},
	}, uuid.New())
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

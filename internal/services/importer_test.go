package services

import (
	"context"
	"testing"

	"github.com/repstack/repstack-backend/internal/types"
)

func TestImportSameNameTwoCallsInsertsOnce(t *testing.T) {
	env := newTestEnv(t, extractionOf("Front Squat"))
	ctx := context.Background()

	first := env.createSession(t, nil)
	res1, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       first.ID,
		ExerciseIndices: []int{0},
	})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if res1.InsertedCount != 1 || res1.UpdatedCount != 0 {
		t.Fatalf("first commit inserted=%d updated=%d, want 1/0", res1.InsertedCount, res1.UpdatedCount)
	}

	second := env.createSession(t, nil)
	res2, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       second.ID,
		ExerciseIndices: []int{0},
	})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if res2.InsertedCount != 0 || res2.UpdatedCount != 1 {
		t.Fatalf("second commit inserted=%d updated=%d, want 0/1", res2.InsertedCount, res2.UpdatedCount)
	}
	if got := env.cardCount(t); got != 1 {
		t.Fatalf("library has %d cards, want exactly 1", got)
	}
}

func TestImportDuplicateNameWithinOneCall(t *testing.T) {
	// Two staged exercises named "Box Jump" committed together: ascending
	// index order means the second lookup finds the first's fresh insert.
	env := newTestEnv(t, extractionOf("Box Jump", "Box Jump"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	res, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{1, 0}, // engine sorts ascending regardless
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.InsertedCount != 1 || res.UpdatedCount != 1 {
		t.Fatalf("inserted=%d updated=%d, want 1 insert and 1 update", res.InsertedCount, res.UpdatedCount)
	}
	if got := env.cardCount(t); got != 1 {
		t.Fatalf("library has %d cards, want 1", got)
	}
	if len(res.Exercises) != 2 {
		t.Fatalf("result lists %d exercises, want 2", len(res.Exercises))
	}
	if res.Exercises[0].ID != res.Exercises[1].ID {
		t.Fatal("both indices should resolve to the same library card")
	}
}

func TestImportCaseInsensitiveDedup(t *testing.T) {
	env := newTestEnv(t, extractionOf("front squat"))
	ctx := context.Background()

	seedSession := env.createSession(t, nil)
	if _, err := env.service.Commit(ctx, CommitRequest{SessionID: seedSession.ID, ExerciseIndices: []int{0}}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	// second video names the same movement in caps
	env.extractor.result = extractionOf("FRONT SQUAT")
	view := env.createSession(t, nil)
	res, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{0}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.UpdatedCount != 1 || res.InsertedCount != 0 {
		t.Fatalf("case-folded name should update, got inserted=%d updated=%d", res.InsertedCount, res.UpdatedCount)
	}
	if got := env.cardCount(t); got != 1 {
		t.Fatalf("library has %d cards, want 1", got)
	}
}

func TestImportOutOfRangeIndexIsIsolated(t *testing.T) {
	env := newTestEnv(t, extractionOf("Goblet Squat", "Plank"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	res, err := env.service.Commit(ctx, CommitRequest{
		SessionID:       view.ID,
		ExerciseIndices: []int{0, 7},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.InsertedCount != 1 {
		t.Fatalf("valid index should still import, inserted=%d", res.InsertedCount)
	}
	if len(res.Failed) != 1 || res.Failed[0].Index != 7 {
		t.Fatalf("expected failed item for index 7, got %+v", res.Failed)
	}
	if res.SessionStatus != types.SessionStatusInProgress {
		t.Fatalf("session status = %s, want in_progress", res.SessionStatus)
	}
}

func TestImportderivedFieldsFromClassifier(t *testing.T) {
	env := newTestEnv(t, extractionOf("Farmers Carry"))
	ctx := context.Background()

	view := env.createSession(t, nil)
	res, err := env.service.Commit(ctx, CommitRequest{SessionID: view.ID, ExerciseIndices: []int{0}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	card, err := env.cardRepo.GetByID(ctx, nil, res.Exercises[0].ID)
	if err != nil {
		t.Fatalf("load card: %v", err)
	}
	if card.TracksReps {
		t.Fatal("carry should not track reps")
	}
	if !card.TracksDuration {
		t.Fatal("carry should track duration")
	}
	if !card.IsNew || card.NewExpiresAt == nil {
		t.Fatal("fresh insert should carry the is_new badge with a deadline")
	}
}

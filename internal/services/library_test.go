package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/types"
)

func seedCard(t *testing.T, env *testEnv, name string, isNew bool, newExpiresAt *time.Time) uuid.UUID {
	t.Helper()
	card := &types.ExerciseCard{
		ID:           uuid.New(),
		Name:         name,
		Difficulty:   types.DifficultyBeginner,
		ExerciseType: types.ExerciseTypeStrength,
		IsNew:        isNew,
		NewExpiresAt: newExpiresAt,
	}
	if err := env.db.Create(card).Error; err != nil {
		t.Fatalf("seed card %s: %v", name, err)
	}
	return card.ID
}

func TestSweepNewBadgesClearsOnlyPastDeadline(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	dueID := seedCard(t, env, "Front Squat", true, &past)
	freshID := seedCard(t, env, "Box Jump", true, &future)
	seedCard(t, env, "Plank", false, nil)

	report, err := env.library.SweepNewBadges(ctx)
	if err != nil {
		t.Fatalf("SweepNewBadges: %v", err)
	}
	if report.Cleared != 1 {
		t.Fatalf("cleared %d badges, want 1", report.Cleared)
	}
	if len(report.Exercises) != 1 || report.Exercises[0] != "Front Squat" {
		t.Fatalf("report.Exercises = %v, want [Front Squat]", report.Exercises)
	}

	due, err := env.cardRepo.GetByID(ctx, nil, dueID)
	if err != nil {
		t.Fatalf("reload due card: %v", err)
	}
	if due.IsNew || due.NewExpiresAt != nil {
		t.Fatalf("due card still flagged new: %+v", due)
	}

	fresh, err := env.cardRepo.GetByID(ctx, nil, freshID)
	if err != nil {
		t.Fatalf("reload fresh card: %v", err)
	}
	if !fresh.IsNew {
		t.Fatal("fresh card lost its badge early")
	}
}

func TestSweepNewBadgesEmptyLibrary(t *testing.T) {
	env := newTestEnv(t, nil)
	report, err := env.library.SweepNewBadges(context.Background())
	if err != nil {
		t.Fatalf("SweepNewBadges: %v", err)
	}
	if report.Cleared != 0 || len(report.Exercises) != 0 {
		t.Fatalf("empty library sweep = %+v, want zero", report)
	}
}

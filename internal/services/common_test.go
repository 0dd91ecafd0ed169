package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
	"github.com/repstack/repstack-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// one in-memory database per test, shared by every borrowed connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&types.VideoAnalysisSession{},
		&types.ExerciseCard{},
		&types.Workout{},
		&types.WorkoutExercise{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type stubExtractor struct {
	result *ExtractionResult
	err    error
	calls  int
}

func (s *stubExtractor) Extract(ctx context.Context, videoURL string, sportHint string) (*ExtractionResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func extractionOf(names ...string) *ExtractionResult {
	exercises := make([]types.RawExercise, 0, len(names))
	for i, n := range names {
		exercises = append(exercises, types.RawExercise{
			Name:         n,
			StartTime:    float64(i * 60),
			EndTime:      float64(i*60 + 45),
			Instructions: []string{fmt.Sprintf("step one of %s", n)},
			Difficulty:   types.DifficultyIntermediate,
			Equipment:    []string{"none"},
		})
	}
	return &ExtractionResult{
		VideoTitle:    "Test Session Video",
		TotalDuration: float64(len(names) * 60),
		Exercises:     exercises,
	}
}

type testEnv struct {
	db          *gorm.DB
	sessionRepo repos.VideoAnalysisSessionRepo
	cardRepo    repos.ExerciseCardRepo
	workoutRepo repos.WorkoutRepo
	importer    ImportEngine
	extractor   *stubExtractor
	service     VideoAnalysisService
	library     LibraryService
}

func newTestEnv(t *testing.T, extraction *ExtractionResult) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()

	sessionRepo := repos.NewVideoAnalysisSessionRepo(db, log)
	cardRepo := repos.NewExerciseCardRepo(db, log)
	workoutRepo := repos.NewWorkoutRepo(db, log)

	importer := NewImportEngine(log, cardRepo)
	quota := NewQuotaGuard(log, sessionRepo)
	notifier := NewSessionNotifier(log, nil, nil)
	extractor := &stubExtractor{result: extraction}

	service := NewVideoAnalysisService(db, log, sessionRepo, workoutRepo, quota, importer, extractor, notifier, time.Minute)
	library := NewLibraryService(db, log, cardRepo, notifier, time.Hour)

	return &testEnv{
		db:          db,
		sessionRepo: sessionRepo,
		cardRepo:    cardRepo,
		workoutRepo: workoutRepo,
		importer:    importer,
		extractor:   extractor,
		service:     service,
		library:     library,
	}
}

func (env *testEnv) createSession(t *testing.T, owner *uuid.UUID) *SessionView {
	t.Helper()
	view, err := env.service.CreateSession(context.Background(), owner, "https://videos.example.com/session.mp4", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return view
}

func (env *testEnv) forceExpire(t *testing.T, sessionID uuid.UUID) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Hour)
	if err := env.sessionRepo.UpdateFields(context.Background(), nil, sessionID, map[string]any{
		"expires_at": past,
	}); err != nil {
		t.Fatalf("force expire: %v", err)
	}
}

func (env *testEnv) cardCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := env.db.Model(&types.ExerciseCard{}).Count(&count).Error; err != nil {
		t.Fatalf("count cards: %v", err)
	}
	return count
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/classify"
	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
	"github.com/repstack/repstack-backend/internal/types"
)

type ImportAction string

const (
	ImportActionInserted ImportAction = "inserted"
	ImportActionUpdated  ImportAction = "updated"
	ImportActionFailed   ImportAction = "failed"
)

type ImportItem struct {
	Index     int          `json:"index"`
	LibraryID uuid.UUID    `json:"libraryId,omitempty"`
	Name      string       `json:"name"`
	Action    ImportAction `json:"action"`
	Error     string       `json:"error,omitempty"`
}

type ImportReport struct {
	InsertedCount int               `json:"insertedCount"`
	UpdatedCount  int               `json:"updatedCount"`
	Items         []ImportItem      `json:"items"`
	Committed     map[int]uuid.UUID `json:"-"`
}

// ImportEngine resolves staged exercises into the canonical library:
// insert-or-update by case-insensitive name, classifier-derived fields
// recomputed on every write.
type ImportEngine interface {
	Commit(ctx context.Context, tx *gorm.DB, session *types.VideoAnalysisSession, staged []types.StagedExercise, indices []int) (*ImportReport, error)
}

type importEngine struct {
	log      *logger.Logger
	cardRepo repos.ExerciseCardRepo
}

func NewImportEngine(baseLog *logger.Logger, cardRepo repos.ExerciseCardRepo) ImportEngine {
	return &importEngine{
		log:      baseLog.With("service", "ImportEngine"),
		cardRepo: cardRepo,
	}
}

// Commit processes indices in ascending order, one library write per index.
// A failing index is recorded and skipped; the rest still proceed, so the
// caller always learns what actually happened. The dedup lookup and the
// subsequent write are two separate statements: two concurrent commits of the
// same name can both miss the lookup and both insert. That race is a known
// property of this pipeline, accepted rather than papered over with a
// uniqueness constraint. Within ONE call ordering does hold: a card inserted
// for an earlier index is found by the lookup of a later same-named index.
func (e *importEngine) Commit(ctx context.Context, tx *gorm.DB, session *types.VideoAnalysisSession, staged []types.StagedExercise, indices []int) (*ImportReport, error) {
	if session == nil {
		return nil, fmt.Errorf("session required")
	}

	ordered := append([]int(nil), indices...)
	sort.Ints(ordered)

	report := &ImportReport{
		Items:     make([]ImportItem, 0, len(ordered)),
		Committed: map[int]uuid.UUID{},
	}

	for _, idx := range ordered {
		if idx < 0 || idx >= len(staged) {
			report.Items = append(report.Items, ImportItem{
				Index:  idx,
				Action: ImportActionFailed,
				Error:  fmt.Sprintf("index %d out of range (session has %d exercises)", idx, len(staged)),
			})
			continue
		}

		item := e.commitOne(ctx, tx, session, staged[idx])
		report.Items = append(report.Items, item)

		switch item.Action {
		case ImportActionInserted:
			report.InsertedCount++
			report.Committed[idx] = item.LibraryID
		case ImportActionUpdated:
			report.UpdatedCount++
			report.Committed[idx] = item.LibraryID
		}
	}

	return report, nil
}

func (e *importEngine) commitOne(ctx context.Context, tx *gorm.DB, session *types.VideoAnalysisSession, ex types.StagedExercise) ImportItem {
	item := ImportItem{Index: ex.OriginalIndex, Name: ex.Name}

	existing, err := e.cardRepo.FirstByNameFold(ctx, tx, ex.Name)
	if err != nil {
		item.Action = ImportActionFailed
		item.Error = fmt.Sprintf("library lookup: %v", err)
		return item
	}

	cls := classify.Classify(ex.Name)
	descriptive, err := cardFields(session.VideoURL, ex.RawExercise, cls)
	if err != nil {
		item.Action = ImportActionFailed
		item.Error = err.Error()
		return item
	}

	if existing != nil {
		if err := e.cardRepo.UpdateFields(ctx, tx, existing.ID, descriptive); err != nil {
			item.Action = ImportActionFailed
			item.Error = fmt.Sprintf("library update: %v", err)
			return item
		}
		e.log.Debug("Library card updated", "card_id", existing.ID, "name", ex.Name, "index", ex.OriginalIndex)
		item.LibraryID = existing.ID
		item.Action = ImportActionUpdated
		return item
	}

	card, err := newCard(session.VideoURL, ex.RawExercise, cls)
	if err != nil {
		item.Action = ImportActionFailed
		item.Error = err.Error()
		return item
	}
	created, err := e.cardRepo.Create(ctx, tx, card)
	if err != nil {
		item.Action = ImportActionFailed
		item.Error = fmt.Sprintf("library insert: %v", err)
		return item
	}
	e.log.Debug("Library card inserted", "card_id", created.ID, "name", ex.Name, "index", ex.OriginalIndex)
	item.LibraryID = created.ID
	item.Action = ImportActionInserted
	return item
}

func cardFields(videoURL string, ex types.RawExercise, cls classify.Classification) (map[string]any, error) {
	instructions, err := encodeJSON(ex.Instructions)
	if err != nil {
		return nil, fmt.Errorf("encode instructions: %w", err)
	}
	cues, err := encodeJSON(ex.CoachingCues)
	if err != nil {
		return nil, fmt.Errorf("encode coaching cues: %w", err)
	}
	screenshots, err := encodeJSON(ex.ScreenshotTimestamps)
	if err != nil {
		return nil, fmt.Errorf("encode screenshot timestamps: %w", err)
	}
	equipment, err := encodeJSON(ex.Equipment)
	if err != nil {
		return nil, fmt.Errorf("encode equipment: %w", err)
	}
	return map[string]any{
		"video_url":             videoURL,
		"start_time":            ex.StartTime,
		"end_time":              ex.EndTime,
		"instructions":          instructions,
		"coaching_cues":         cues,
		"screenshot_timestamps": screenshots,
		"difficulty":            ex.Difficulty,
		"equipment":             equipment,
		"exercise_type":         cls.ExerciseType,
		"tracks_weight":         cls.TracksWeight,
		"tracks_reps":           cls.TracksReps,
		"tracks_duration":       cls.TracksDuration,
		"tracks_distance":       cls.TracksDistance,
		"updated_at":            time.Now().UTC(),
	}, nil
}

func newCard(videoURL string, ex types.RawExercise, cls classify.Classification) (*types.ExerciseCard, error) {
	instructions, err := encodeJSON(ex.Instructions)
	if err != nil {
		return nil, fmt.Errorf("encode instructions: %w", err)
	}
	cues, err := encodeJSON(ex.CoachingCues)
	if err != nil {
		return nil, fmt.Errorf("encode coaching cues: %w", err)
	}
	screenshots, err := encodeJSON(ex.ScreenshotTimestamps)
	if err != nil {
		return nil, fmt.Errorf("encode screenshot timestamps: %w", err)
	}
	equipment, err := encodeJSON(ex.Equipment)
	if err != nil {
		return nil, fmt.Errorf("encode equipment: %w", err)
	}
	now := time.Now().UTC()
	newExpiry := now.Add(types.NewCardTTL)
	return &types.ExerciseCard{
		ID:                   uuid.New(),
		Name:                 ex.Name,
		VideoURL:             videoURL,
		StartTime:            ex.StartTime,
		EndTime:              ex.EndTime,
		Instructions:         instructions,
		CoachingCues:         cues,
		ScreenshotTimestamps: screenshots,
		Difficulty:           ex.Difficulty,
		Equipment:            equipment,
		ExerciseType:         cls.ExerciseType,
		TracksWeight:         cls.TracksWeight,
		TracksReps:           cls.TracksReps,
		TracksDuration:       cls.TracksDuration,
		TracksDistance:       cls.TracksDistance,
		IsNew:                true,
		NewExpiresAt:         &newExpiry,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func encodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

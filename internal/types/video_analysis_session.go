package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusExpired    SessionStatus = "expired"
)

// SessionTTL is the fixed review window for a staging session.
const SessionTTL = 24 * time.Hour

type VideoAnalysisSession struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID          *uuid.UUID     `gorm:"type:uuid;index;column:owner_user_id" json:"owner_user_id,omitempty"`
	VideoURL             string         `gorm:"not null;column:video_url" json:"video_url"`
	VideoTitle           string         `gorm:"column:video_title" json:"video_title"`
	Sport                *string        `gorm:"column:sport" json:"sport,omitempty"`
	TotalDuration        float64        `gorm:"column:total_duration" json:"total_duration"`
	Exercises            datatypes.JSON `gorm:"type:jsonb;column:exercises" json:"exercises"`
	EditedExercises      datatypes.JSON `gorm:"type:jsonb;column:edited_exercises" json:"edited_exercises"`
	CommittedExerciseIDs datatypes.JSON `gorm:"type:jsonb;column:committed_exercise_ids" json:"committed_exercise_ids"`
	Status               SessionStatus  `gorm:"not null;default:pending;index;column:status" json:"status"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
	ExpiresAt            time.Time      `gorm:"not null;index;column:expires_at" json:"expires_at"`
}

func (VideoAnalysisSession) TableName() string {
	return "video_analysis_session"
}

// The exercise array and both per-index maps are stored as jsonb; the maps
// are keyed by the string-encoded index so they round-trip through storage
// without reordering or key coercion. Decode helpers below convert back to
// int-keyed maps for the projector and import engine.

func (s *VideoAnalysisSession) RawExercises() ([]RawExercise, error) {
	if len(s.Exercises) == 0 {
		return []RawExercise{}, nil
	}
	var out []RawExercise
	if err := json.Unmarshal(s.Exercises, &out); err != nil {
		return nil, fmt.Errorf("decode session exercises: %w", err)
	}
	return out, nil
}

func (s *VideoAnalysisSession) EditOverlays() (map[int]EditOverlay, error) {
	out := map[int]EditOverlay{}
	if len(s.EditedExercises) == 0 {
		return out, nil
	}
	var raw map[string]EditOverlay
	if err := json.Unmarshal(s.EditedExercises, &raw); err != nil {
		return nil, fmt.Errorf("decode session edited_exercises: %w", err)
	}
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode session edited_exercises: bad index %q", k)
		}
		out[i] = v
	}
	return out, nil
}

func (s *VideoAnalysisSession) CommittedIDs() (map[int]uuid.UUID, error) {
	out := map[int]uuid.UUID{}
	if len(s.CommittedExerciseIDs) == 0 {
		return out, nil
	}
	var raw map[string]uuid.UUID
	if err := json.Unmarshal(s.CommittedExerciseIDs, &raw); err != nil {
		return nil, fmt.Errorf("decode session committed_exercise_ids: %w", err)
	}
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode session committed_exercise_ids: bad index %q", k)
		}
		out[i] = v
	}
	return out, nil
}

func EncodeRawExercises(exercises []RawExercise) (datatypes.JSON, error) {
	if exercises == nil {
		exercises = []RawExercise{}
	}
	b, err := json.Marshal(exercises)
	if err != nil {
		return nil, fmt.Errorf("encode session exercises: %w", err)
	}
	return datatypes.JSON(b), nil
}

func EncodeOverlays(overlays map[int]EditOverlay) (datatypes.JSON, error) {
	raw := make(map[string]EditOverlay, len(overlays))
	for i, v := range overlays {
		raw[strconv.Itoa(i)] = v
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode session edited_exercises: %w", err)
	}
	return datatypes.JSON(b), nil
}

func EncodeCommittedIDs(committed map[int]uuid.UUID) (datatypes.JSON, error) {
	raw := make(map[string]uuid.UUID, len(committed))
	for i, v := range committed {
		raw[strconv.Itoa(i)] = v
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode session committed_exercise_ids: %w", err)
	}
	return datatypes.JSON(b), nil
}

// Live reports whether the session still counts against its owner's quota.
func (s *VideoAnalysisSession) Live(now time.Time) bool {
	if s.Status != SessionStatusPending && s.Status != SessionStatusInProgress {
		return false
	}
	return s.ExpiresAt.After(now)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/repstack/repstack-backend/internal/apierr"
	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/repos"
	"github.com/repstack/repstack-backend/internal/sse"
	"github.com/repstack/repstack-backend/internal/staging"
	"github.com/repstack/repstack-backend/internal/types"
)

// SessionView is the staged read model handed to clients: session metadata
// plus the projected exercise list.
type SessionView struct {
	ID            uuid.UUID              `json:"id"`
	OwnerUserID   *uuid.UUID             `json:"owner_user_id,omitempty"`
	VideoURL      string                 `json:"video_url"`
	VideoTitle    string                 `json:"video_title"`
	Sport         *string                `json:"sport,omitempty"`
	TotalDuration float64                `json:"total_duration"`
	Status        types.SessionStatus    `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	ExpiresAt     time.Time              `json:"expires_at"`
	Exercises     []types.StagedExercise `json:"exercises"`
}

type CommitRequest struct {
	SessionID       uuid.UUID
	CallerUserID    *uuid.UUID
	ExerciseIndices []int
	EditedExercises map[int]types.EditOverlay
	// MarkComplete is advisory from the client; the server recomputes the
	// resulting status from the committed set either way.
	MarkComplete bool
}

type CommittedExerciseRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type CommitResult struct {
	InsertedCount int                    `json:"insertedCount"`
	UpdatedCount  int                    `json:"updatedCount"`
	SessionStatus types.SessionStatus    `json:"sessionStatus"`
	Exercises     []CommittedExerciseRef `json:"exercises"`
	Failed        []ImportItem           `json:"failed,omitempty"`
}

type AddToWorkoutResult struct {
	CommitResult
	WorkoutID uuid.UUID  `json:"workoutId"`
	ProgramID *uuid.UUID `json:"programId,omitempty"`
}

type SweepReport struct {
	Finalized  int         `json:"finalized"`
	StillOpen  int         `json:"stillOpen"`
	SessionIDs []uuid.UUID `json:"sessionIds"`
}

type VideoAnalysisService interface {
	CreateSession(ctx context.Context, ownerUserID *uuid.UUID, videoURL string, sport *string) (*SessionView, error)
	GetSession(ctx context.Context, callerUserID *uuid.UUID, id uuid.UUID) (*SessionView, error)
	SaveEdits(ctx context.Context, callerUserID *uuid.UUID, id uuid.UUID, edits map[int]types.EditOverlay) (*SessionView, error)
	Commit(ctx context.Context, req CommitRequest) (*CommitResult, error)
	AddToWorkout(ctx context.Context, req CommitRequest, workoutID uuid.UUID) (*AddToWorkoutResult, error)
	SweepExpired(ctx context.Context) (*SweepReport, error)
	StartWorker(ctx context.Context)
}

type videoAnalysisService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.VideoAnalysisSessionRepo
	workoutRepo repos.WorkoutRepo
	quota       QuotaGuard
	importer    ImportEngine
	extractor   VideoExtractor
	notifier    SessionNotifier

	sweepInterval time.Duration
}

func NewVideoAnalysisService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.VideoAnalysisSessionRepo,
	workoutRepo repos.WorkoutRepo,
	quota QuotaGuard,
	importer ImportEngine,
	extractor VideoExtractor,
	notifier SessionNotifier,
	sweepInterval time.Duration,
) VideoAnalysisService {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &videoAnalysisService{
		db:            db,
		log:           baseLog.With("service", "VideoAnalysisService"),
		sessionRepo:   sessionRepo,
		workoutRepo:   workoutRepo,
		quota:         quota,
		importer:      importer,
		extractor:     extractor,
		notifier:      notifier,
		sweepInterval: sweepInterval,
	}
}

func (s *videoAnalysisService) CreateSession(ctx context.Context, ownerUserID *uuid.UUID, videoURL string, sport *string) (*SessionView, error) {
	if err := validateVideoURL(videoURL); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_video_url", err)
	}

	now := time.Now().UTC()
	if err := s.quota.CheckCanCreate(ctx, nil, ownerUserID, now); err != nil {
		var qe *QuotaExceededError
		if errors.As(err, &qe) {
			return nil, apierr.New(http.StatusTooManyRequests, "session_quota_exceeded", err)
		}
		return nil, err
	}

	sportHint := ""
	if sport != nil {
		sportHint = *sport
	}
	extraction, err := s.extractor.Extract(ctx, videoURL, sportHint)
	if err != nil {
		s.log.Warn("Extractor failed, session not created", "video_url", videoURL, "error", err)
		return nil, apierr.New(http.StatusBadGateway, "extraction_failed", fmt.Errorf("video analysis failed: %w", err))
	}

	rawJSON, err := types.EncodeRawExercises(extraction.Exercises)
	if err != nil {
		return nil, err
	}
	emptyOverlays, err := types.EncodeOverlays(nil)
	if err != nil {
		return nil, err
	}
	emptyCommits, err := types.EncodeCommittedIDs(nil)
	if err != nil {
		return nil, err
	}

	sessionSport := sport
	if sessionSport == nil && extraction.Sport != nil {
		sessionSport = extraction.Sport
	}

	session := &types.VideoAnalysisSession{
		ID:                   uuid.New(),
		OwnerUserID:          ownerUserID,
		VideoURL:             videoURL,
		VideoTitle:           extraction.VideoTitle,
		Sport:                sessionSport,
		TotalDuration:        extraction.TotalDuration,
		Exercises:            rawJSON,
		EditedExercises:      emptyOverlays,
		CommittedExerciseIDs: emptyCommits,
		Status:               types.SessionStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
		ExpiresAt:            now.Add(types.SessionTTL),
	}
	if _, err := s.sessionRepo.Create(ctx, nil, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("Video analysis session created",
		"session_id", session.ID,
		"exercise_count", len(extraction.Exercises),
		"expires_at", session.ExpiresAt)
	s.notifier.Notify(ctx, session.ID.String(), sse.SSEEventSessionCreated, map[string]any{
		"session_id":     session.ID,
		"exercise_count": len(extraction.Exercises),
	})

	return s.view(session)
}

func (s *videoAnalysisService) GetSession(ctx context.Context, callerUserID *uuid.UUID, id uuid.UUID) (*SessionView, error) {
	session, err := s.loadAuthorized(ctx, callerUserID, id)
	if err != nil {
		return nil, err
	}
	session, err = s.expireIfDue(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.view(session)
}

func (s *videoAnalysisService) SaveEdits(ctx context.Context, callerUserID *uuid.UUID, id uuid.UUID, edits map[int]types.EditOverlay) (*SessionView, error) {
	session, err := s.loadAuthorized(ctx, callerUserID, id)
	if err != nil {
		return nil, err
	}
	session, err = s.expireIfDue(ctx, session)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusCompleted || session.Status == types.SessionStatusExpired {
		return nil, apierr.Newf(http.StatusConflict, "session_not_editable", "session %s is %s and no longer accepts edits", id, session.Status)
	}

	merged, err := s.mergeOverlays(session, edits)
	if err != nil {
		return nil, err
	}
	encoded, err := types.EncodeOverlays(merged)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"edited_exercises": encoded,
		"updated_at":       time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("save edits: %w", err)
	}
	session.EditedExercises = encoded
	return s.view(session)
}

func (s *videoAnalysisService) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if len(req.ExerciseIndices) == 0 {
		return nil, apierr.Newf(http.StatusBadRequest, "missing_exercise_indices", "exerciseIndices must not be empty")
	}

	session, err := s.loadAuthorized(ctx, req.CallerUserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	session, err = s.expireIfDue(ctx, session)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusCompleted || session.Status == types.SessionStatusExpired {
		return nil, apierr.Newf(http.StatusConflict, "session_not_editable", "session %s is %s; its exercises were already resolved", req.SessionID, session.Status)
	}

	result, _, err := s.commitIndices(ctx, session, req.ExerciseIndices, req.EditedExercises)
	if err != nil {
		return nil, err
	}

	if req.MarkComplete && result.SessionStatus != types.SessionStatusCompleted {
		s.log.Debug("Client requested completion but uncommitted indices remain",
			"session_id", session.ID, "status", result.SessionStatus)
	}
	return result, nil
}

func (s *videoAnalysisService) AddToWorkout(ctx context.Context, req CommitRequest, workoutID uuid.UUID) (*AddToWorkoutResult, error) {
	if len(req.ExerciseIndices) == 0 {
		return nil, apierr.Newf(http.StatusBadRequest, "missing_exercise_indices", "exerciseIndices must not be empty")
	}
	workout, err := s.workoutRepo.GetByID(ctx, nil, workoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "workout_not_found", "workout %s not found", workoutID)
		}
		return nil, err
	}

	session, err := s.loadAuthorized(ctx, req.CallerUserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	session, err = s.expireIfDue(ctx, session)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusCompleted || session.Status == types.SessionStatusExpired {
		return nil, apierr.Newf(http.StatusConflict, "session_not_editable", "session %s is %s; its exercises were already resolved", req.SessionID, session.Status)
	}

	result, report, err := s.commitIndices(ctx, session, req.ExerciseIndices, req.EditedExercises)
	if err != nil {
		return nil, err
	}

	// Library commit succeeded; appending to the workout is per-card best
	// effort on top of it.
	for _, item := range report.Items {
		if item.Action != ImportActionInserted && item.Action != ImportActionUpdated {
			continue
		}
		pos, err := s.workoutRepo.NextPosition(ctx, nil, workout.ID)
		if err != nil {
			s.log.Warn("Failed to compute workout position", "workout_id", workout.ID, "error", err)
			continue
		}
		if _, err := s.workoutRepo.AppendExercise(ctx, nil, &types.WorkoutExercise{
			ID:             uuid.New(),
			WorkoutID:      workout.ID,
			ExerciseCardID: item.LibraryID,
			Position:       pos,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			s.log.Warn("Failed to append exercise to workout", "workout_id", workout.ID, "card_id", item.LibraryID, "error", err)
		}
	}

	return &AddToWorkoutResult{
		CommitResult: *result,
		WorkoutID:    workout.ID,
		ProgramID:    workout.ProgramID,
	}, nil
}

// commitIndices is the shared partial-commit path: persist fresh edits, run
// the import engine, fold the per-item results back into the session row and
// compute the authoritative status.
func (s *videoAnalysisService) commitIndices(ctx context.Context, session *types.VideoAnalysisSession, indices []int, edits map[int]types.EditOverlay) (*CommitResult, *ImportReport, error) {
	raw, err := session.RawExercises()
	if err != nil {
		return nil, nil, err
	}
	committed, err := session.CommittedIDs()
	if err != nil {
		return nil, nil, err
	}
	overlays, err := s.mergeOverlays(session, edits)
	if err != nil {
		return nil, nil, err
	}

	if len(edits) > 0 {
		encoded, err := types.EncodeOverlays(overlays)
		if err != nil {
			return nil, nil, err
		}
		if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
			"edited_exercises": encoded,
			"updated_at":       time.Now().UTC(),
		}); err != nil {
			return nil, nil, fmt.Errorf("persist commit edits: %w", err)
		}
		session.EditedExercises = encoded
	}

	staged := staging.Project(raw, overlays, committed)
	report, err := s.importer.Commit(ctx, nil, session, staged, indices)
	if err != nil {
		return nil, nil, err
	}

	for idx, id := range report.Committed {
		committed[idx] = id
	}
	status := commitStatus(len(raw), committed)

	encodedCommits, err := types.EncodeCommittedIDs(committed)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"committed_exercise_ids": encodedCommits,
		"status":                 status,
		"updated_at":             time.Now().UTC(),
	}); err != nil {
		return nil, nil, fmt.Errorf("record commit results: %w", err)
	}
	session.CommittedExerciseIDs = encodedCommits
	session.Status = status

	result := &CommitResult{
		InsertedCount: report.InsertedCount,
		UpdatedCount:  report.UpdatedCount,
		SessionStatus: status,
	}
	for _, item := range report.Items {
		switch item.Action {
		case ImportActionInserted, ImportActionUpdated:
			result.Exercises = append(result.Exercises, CommittedExerciseRef{ID: item.LibraryID, Name: item.Name})
		case ImportActionFailed:
			result.Failed = append(result.Failed, item)
		}
	}

	event := sse.SSEEventSessionCommitted
	if status == types.SessionStatusCompleted {
		event = sse.SSEEventSessionCompleted
	}
	s.notifier.Notify(ctx, session.ID.String(), event, map[string]any{
		"session_id":     session.ID,
		"inserted_count": report.InsertedCount,
		"updated_count":  report.UpdatedCount,
		"status":         status,
	})

	s.log.Info("Session commit processed",
		"session_id", session.ID,
		"inserted", report.InsertedCount,
		"updated", report.UpdatedCount,
		"failed", len(result.Failed),
		"status", status)
	return result, report, nil
}

// commitStatus derives the post-commit status from the committed set alone.
func commitStatus(rawLen int, committed map[int]uuid.UUID) types.SessionStatus {
	remaining := 0
	for i := 0; i < rawLen; i++ {
		if _, ok := committed[i]; !ok {
			remaining++
		}
	}
	if remaining == 0 && rawLen > 0 {
		return types.SessionStatusCompleted
	}
	return types.SessionStatusInProgress
}

// expireIfDue is the lazy half of expiry: any read that notices the deadline
// has passed finalizes the session in place before proceeding.
func (s *videoAnalysisService) expireIfDue(ctx context.Context, session *types.VideoAnalysisSession) (*types.VideoAnalysisSession, error) {
	now := time.Now().UTC()
	if session.Status != types.SessionStatusPending && session.Status != types.SessionStatusInProgress {
		return session, nil
	}
	if session.ExpiresAt.After(now) {
		return session, nil
	}
	return s.finalizeExpired(ctx, session)
}

// finalizeExpired force-commits every remaining index through the normal
// import path. The expired status is written first so a crash mid-import
// leaves the session visibly expired and the next sweep retries it;
// completed is only recorded once no uncommitted index remains.
func (s *videoAnalysisService) finalizeExpired(ctx context.Context, session *types.VideoAnalysisSession) (*types.VideoAnalysisSession, error) {
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"status":     types.SessionStatusExpired,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("mark session expired: %w", err)
	}
	session.Status = types.SessionStatusExpired

	raw, err := session.RawExercises()
	if err != nil {
		return nil, err
	}
	overlays, err := session.EditOverlays()
	if err != nil {
		return nil, err
	}
	committed, err := session.CommittedIDs()
	if err != nil {
		return nil, err
	}

	remaining := make([]int, 0, len(raw))
	for i := range raw {
		if _, ok := committed[i]; !ok {
			remaining = append(remaining, i)
		}
	}

	s.notifier.Notify(ctx, session.ID.String(), sse.SSEEventSessionExpired, map[string]any{
		"session_id":      session.ID,
		"remaining_count": len(remaining),
	})

	if len(remaining) > 0 {
		staged := staging.Project(raw, overlays, committed)
		report, err := s.importer.Commit(ctx, nil, session, staged, remaining)
		if err != nil {
			return nil, err
		}
		for idx, id := range report.Committed {
			committed[idx] = id
		}
		s.log.Info("Expired session force-committed",
			"session_id", session.ID,
			"inserted", report.InsertedCount,
			"updated", report.UpdatedCount,
			"failed", len(remaining)-len(report.Committed))
	}

	status := types.SessionStatusExpired
	if len(committed) == len(raw) && len(raw) > 0 {
		status = types.SessionStatusCompleted
	}
	encodedCommits, err := types.EncodeCommittedIDs(committed)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateFields(ctx, nil, session.ID, map[string]any{
		"committed_exercise_ids": encodedCommits,
		"status":                 status,
		"updated_at":             time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("finalize expired session: %w", err)
	}
	session.CommittedExerciseIDs = encodedCommits
	session.Status = status

	if status == types.SessionStatusCompleted {
		s.notifier.Notify(ctx, session.ID.String(), sse.SSEEventSessionCompleted, map[string]any{
			"session_id": session.ID,
			"status":     status,
		})
	}
	return session, nil
}

func (s *videoAnalysisService) SweepExpired(ctx context.Context) (*SweepReport, error) {
	now := time.Now().UTC()
	expired, err := s.sessionRepo.ListExpiredUnfinalized(ctx, nil, now, 50)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}

	report := &SweepReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, session := range expired {
		session := session
		g.Go(func() error {
			finalized, err := s.finalizeExpired(gctx, session)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("Failed to finalize expired session", "session_id", session.ID, "error", err)
				report.StillOpen++
				return nil
			}
			report.SessionIDs = append(report.SessionIDs, session.ID)
			if finalized.Status == types.SessionStatusCompleted {
				report.Finalized++
			} else {
				report.StillOpen++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if report.Finalized > 0 || report.StillOpen > 0 {
		s.log.Info("Expired session sweep finished", "finalized", report.Finalized, "still_open", report.StillOpen)
	}
	return report, nil
}

func (s *videoAnalysisService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil {
					s.log.Warn("SweepExpired failed", "error", err)
				}
			}
		}
	}()
}

func (s *videoAnalysisService) loadAuthorized(ctx context.Context, callerUserID *uuid.UUID, id uuid.UUID) (*types.VideoAnalysisSession, error) {
	if id == uuid.Nil {
		return nil, apierr.Newf(http.StatusBadRequest, "missing_session_id", "session id required")
	}
	session, err := s.sessionRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "session_not_found", "session %s not found", id)
		}
		return nil, err
	}
	// Owned sessions are only visible to their owner; anonymous sessions are
	// addressable by anyone holding the id.
	if session.OwnerUserID != nil {
		if callerUserID == nil || *callerUserID != *session.OwnerUserID {
			return nil, apierr.Newf(http.StatusForbidden, "session_forbidden", "session %s belongs to another user", id)
		}
	}
	return session, nil
}

// mergeOverlays folds incoming edits into the stored overlays, then
// renormalizes each touched index by diffing the fully-applied exercise
// against the raw one. An edit that restores the raw value drops out of the
// overlay instead of persisting as a no-op, so IsEdited tracks real
// divergence rather than edit history.
func (s *videoAnalysisService) mergeOverlays(session *types.VideoAnalysisSession, edits map[int]types.EditOverlay) (map[int]types.EditOverlay, error) {
	overlays, err := session.EditOverlays()
	if err != nil {
		return nil, err
	}
	raw, err := session.RawExercises()
	if err != nil {
		return nil, err
	}
	for idx, next := range edits {
		merged := next
		if base, ok := overlays[idx]; ok {
			merged = staging.MergeOverlay(base, next)
		}
		if idx < 0 || idx >= len(raw) {
			if merged.IsEmpty() {
				delete(overlays, idx)
			} else {
				overlays[idx] = merged
			}
			continue
		}
		applied := types.StagedExercise{RawExercise: staging.ApplyOverlay(raw[idx], merged)}
		if normalized := staging.ComputeOverlay(raw[idx], applied); normalized != nil {
			overlays[idx] = *normalized
		} else {
			delete(overlays, idx)
		}
	}
	return overlays, nil
}

func (s *videoAnalysisService) view(session *types.VideoAnalysisSession) (*SessionView, error) {
	raw, err := session.RawExercises()
	if err != nil {
		return nil, err
	}
	overlays, err := session.EditOverlays()
	if err != nil {
		return nil, err
	}
	committed, err := session.CommittedIDs()
	if err != nil {
		return nil, err
	}
	return &SessionView{
		ID:            session.ID,
		OwnerUserID:   session.OwnerUserID,
		VideoURL:      session.VideoURL,
		VideoTitle:    session.VideoTitle,
		Sport:         session.Sport,
		TotalDuration: session.TotalDuration,
		Status:        session.Status,
		CreatedAt:     session.CreatedAt,
		ExpiresAt:     session.ExpiresAt,
		Exercises:     staging.Project(raw, overlays, committed),
	}, nil
}

func validateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("videoUrl required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("videoUrl is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "gs":
	default:
		return fmt.Errorf("unsupported videoUrl scheme %q", u.Scheme)
	}
	if u.Host == "" && u.Scheme != "gs" {
		return fmt.Errorf("videoUrl missing host")
	}
	return nil
}

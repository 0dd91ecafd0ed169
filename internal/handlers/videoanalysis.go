package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/requestdata"
	"github.com/repstack/repstack-backend/internal/services"
	"github.com/repstack/repstack-backend/internal/types"
)

type VideoAnalysisHandler struct {
	log     *logger.Logger
	service services.VideoAnalysisService
}

func NewVideoAnalysisHandler(log *logger.Logger, service services.VideoAnalysisService) *VideoAnalysisHandler {
	return &VideoAnalysisHandler{
		log:     log.With("handler", "VideoAnalysisHandler"),
		service: service,
	}
}

type createSessionRequest struct {
	VideoURL string  `json:"videoUrl" binding:"required"`
	Sport    *string `json:"sport"`
}

// Edit overlays arrive keyed by the exercise's original index. JSON object
// keys are strings, so the wire shape is map[string]overlay and we convert
// back to ints here.
type commitRequestBody struct {
	ExerciseIndices []int                        `json:"exerciseIndices"`
	EditedExercises map[string]types.EditOverlay `json:"editedExercises"`
	MarkComplete    bool                         `json:"markComplete"`
}

type saveEditsRequest struct {
	EditedExercises map[string]types.EditOverlay `json:"editedExercises" binding:"required"`
}

type addToWorkoutRequest struct {
	commitRequestBody
	WorkoutID uuid.UUID `json:"workoutId" binding:"required"`
}

func indexedOverlays(in map[string]types.EditOverlay) (map[int]types.EditOverlay, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[int]types.EditOverlay, len(in))
	for key, overlay := range in {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, err
		}
		out[idx] = overlay
	}
	return out, nil
}

func (h *VideoAnalysisHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	owner := requestdata.OwnerID(ctx)
	view, err := h.service.CreateSession(ctx, owner, req.VideoURL, req.Sport)
	if err != nil {
		h.log.Error("CreateSession failed", "error", err, "video_url", req.VideoURL)
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": view})
}

func (h *VideoAnalysisHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	ctx := c.Request.Context()
	view, err := h.service.GetSession(ctx, requestdata.OwnerID(ctx), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": view})
}

func (h *VideoAnalysisHandler) SaveEdits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req saveEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	edits, err := indexedOverlays(req.EditedExercises)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_index", err)
		return
	}
	ctx := c.Request.Context()
	view, err := h.service.SaveEdits(ctx, requestdata.OwnerID(ctx), id, edits)
	if err != nil {
		h.log.Error("SaveEdits failed", "error", err, "session_id", id)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": view})
}

func (h *VideoAnalysisHandler) Commit(c *gin.Context) {
	req, ok := h.bindCommit(c)
	if !ok {
		return
	}
	result, err := h.service.Commit(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Commit failed", "error", err, "session_id", req.SessionID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *VideoAnalysisHandler) AddToWorkout(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var body addToWorkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	edits, err := indexedOverlays(body.EditedExercises)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_index", err)
		return
	}
	ctx := c.Request.Context()
	req := services.CommitRequest{
		SessionID:       id,
		CallerUserID:    requestdata.OwnerID(ctx),
		ExerciseIndices: body.ExerciseIndices,
		EditedExercises: edits,
		MarkComplete:    body.MarkComplete,
	}
	result, err := h.service.AddToWorkout(ctx, req, body.WorkoutID)
	if err != nil {
		h.log.Error("AddToWorkout failed", "error", err, "session_id", id, "workout_id", body.WorkoutID)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *VideoAnalysisHandler) SweepExpired(c *gin.Context) {
	report, err := h.service.SweepExpired(c.Request.Context())
	if err != nil {
		h.log.Error("SweepExpired failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, report)
}

func (h *VideoAnalysisHandler) bindCommit(c *gin.Context) (services.CommitRequest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return services.CommitRequest{}, false
	}
	var body commitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return services.CommitRequest{}, false
	}
	edits, err := indexedOverlays(body.EditedExercises)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_index", err)
		return services.CommitRequest{}, false
	}
	return services.CommitRequest{
		SessionID:       id,
		CallerUserID:    requestdata.OwnerID(c.Request.Context()),
		ExerciseIndices: body.ExerciseIndices,
		EditedExercises: edits,
		MarkComplete:    body.MarkComplete,
	}, true
}

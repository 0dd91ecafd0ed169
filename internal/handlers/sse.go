package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/requestdata"
	"github.com/repstack/repstack-backend/internal/sse"
)

type SSEHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{
		log: log.With("handler", "SSEHandler"),
		hub: hub,
	}
}

// SSEStream opens a long-lived event stream following one staging session.
// The channel is the session id; anonymous callers who hold the id may
// subscribe, matching session read access.
func (h *SSEHandler) SSEStream(c *gin.Context) {
	channel := c.Query("channel")
	if _, err := uuid.Parse(channel); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_channel", err)
		return
	}

	userID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		userID = rd.UserID
	}

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, channel)
	h.log.Info("SSE stream open", "channel", channel, "user_id", userID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
}

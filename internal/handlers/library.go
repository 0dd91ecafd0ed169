package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/services"
)

type LibraryHandler struct {
	log     *logger.Logger
	service services.LibraryService
}

func NewLibraryHandler(log *logger.Logger, service services.LibraryService) *LibraryHandler {
	return &LibraryHandler{
		log:     log.With("handler", "LibraryHandler"),
		service: service,
	}
}

func (h *LibraryHandler) SweepNewBadges(c *gin.Context) {
	report, err := h.service.SweepNewBadges(c.Request.Context())
	if err != nil {
		h.log.Error("SweepNewBadges failed", "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, report)
}

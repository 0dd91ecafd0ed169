package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/repstack/repstack-backend/internal/apierr"
	"github.com/repstack/repstack-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Current *int   `json:"current,omitempty"`
	Max     *int   `json:"max,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError unwraps service errors into the HTTP envelope. Quota
// rejections additionally carry the caller's current count and the ceiling so
// the client can decide whether to wait or clean up.
func RespondServiceError(c *gin.Context, err error) {
	var qe *services.QuotaExceededError
	if errors.As(err, &qe) {
		c.JSON(http.StatusTooManyRequests, ErrorEnvelope{
			Error: APIError{
				Message: qe.Error(),
				Code:    "session_quota_exceeded",
				Current: &qe.Current,
				Max:     &qe.Max,
			},
		})
		return
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		RespondError(c, status, ae.Code, ae)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/service"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// statusFor maps a service error to its HTTP status. The order matters:
// an unknown material at confirmation wraps both reconciliation and invalid
// input and must surface as 422.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, entity.ErrReconciliation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrExtraction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. A totals mismatch also carries the
// reconciliation report so the reviewer can see the difference.
func (h *Handlers) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	if status == http.StatusInternalServerError {
		h.logger.Error(action+" failed", zap.Error(err))
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}

	resp := Response{Success: false, Error: err.Error()}
	var recErr *service.ReconciliationError
	if errors.As(err, &recErr) {
		resp.Data = recErr.Report
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

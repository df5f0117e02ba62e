package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/api/types"
	"github.com/urmzd/linkhub/pkg/db"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// errorStatus maps a sentinel error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, device.ErrValidation), errors.Is(err, jobs.ErrUnknownKind),
		errors.Is(err, house.ErrNotGateway):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, house.ErrDeviceNotFound), errors.Is(err, device.ErrNotFound),
		errors.Is(err, jobs.ErrNoSuchJob), errors.Is(err, db.ErrJobRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, jobs.ErrJobRunning):
		return http.StatusConflict, "job_running"
	case errors.Is(err, house.ErrDeviceExists), errors.Is(err, house.ErrActiveGateway),
		errors.Is(err, house.ErrNoGateway):
		return http.StatusConflict, "conflict"
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, device.ErrNotConnected):
		return http.StatusServiceUnavailable, "modem_disconnected"
	case errors.Is(err, device.ErrNAK):
		return http.StatusBadGateway, "modem_refused"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, types.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

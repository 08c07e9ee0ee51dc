package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrNotFound:          http.StatusNotFound,
	errors.ErrBadRequest:        http.StatusBadRequest,
	errors.ErrUnauthorized:      http.StatusUnauthorized,
	errors.ErrForbidden:         http.StatusForbidden,
	errors.ErrConflict:          http.StatusConflict,
	errors.ErrSlotAlreadyBooked: http.StatusConflict,
	errors.ErrDoctorUnavailable: http.StatusUnprocessableEntity,
	errors.ErrPersistence:       http.StatusInternalServerError,
	errors.ErrInconsistentState: http.StatusInternalServerError,
	errors.ErrInternal:          http.StatusInternalServerError,
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	if status, ok := statusByCode[errors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// RespondWithError sends an error response. Internal details never leave the process.
func RespondWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	message := http.StatusText(status)
	if appErr, ok := errors.AsAppError(err); ok {
		message = appErr.Message
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: message,
	})
}

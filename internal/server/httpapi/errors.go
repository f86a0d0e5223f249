package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/gin-gonic/gin"
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeTokenExpired = "token_expired"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodePartComplete = "part_complete"
	ErrCodeBusy         = "busy"
	ErrCodeInternal     = "internal"
	ErrCodeValidation   = "validation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp ErrorResponse

	switch {
	case errors.Is(err, common.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeTokenExpired, Message: "Token has expired"}
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeUnauthorized, Message: "Missing or invalid access token"}
	case errors.Is(err, common.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = ErrorResponse{Code: ErrCodeForbidden, Message: "Part is assigned to another writer"}
	case errors.Is(err, common.ErrPartAlreadyComplete):
		statusCode = http.StatusConflict
		errResp = ErrorResponse{Code: ErrCodePartComplete, Message: "Part is already complete"}
	case errors.Is(err, common.ErrorNotFound):
		statusCode = http.StatusNotFound
		errResp = ErrorResponse{Code: ErrCodeNotFound, Message: "Not found"}
	case errors.Is(err, common.ErrConflict):
		statusCode = http.StatusServiceUnavailable
		errResp = ErrorResponse{Code: ErrCodeBusy, Message: "Too many concurrent requests, try again"}
	case errors.Is(err, common.ErrValidation):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodeValidation, Message: err.Error()}
	default:
		h.log.Error(c.Request.Context(), "unhandled internal error", "error", err)
		statusCode = http.StatusInternalServerError
		errResp = ErrorResponse{Code: ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, errResp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: ErrCodeBadRequest, Message: msg})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/edupulse/attempt-service/internal/services"
	"github.com/edupulse/attempt-service/internal/utils"
)

// ErrorResponse is the uniform error body for all endpoints
type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse wraps successful payloads
type SuccessResponse struct {
	Data any `json:"data"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the context logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Info(msg, args...)
}

// parseIDParam parses a uint path parameter; writes a 400 and returns 0 on failure
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// requireUserID reads the authenticated user id set by the auth middleware
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

// handleServiceError maps service layer errors onto HTTP status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs services.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: permErr.Error(),
		})
		return
	}

	var bizErr *services.BusinessRuleError
	if errors.As(err, &bizErr) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: bizErr.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Resource not found"})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt has already been submitted"})
	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is no longer active"})
	case errors.Is(err, services.ErrMaxAttemptsReached):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Maximum number of attempts reached"})
	case errors.Is(err, services.ErrAttemptCannotStart),
		errors.Is(err, services.ErrExamNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Exam is not available"})
	case errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: "Attempt time has expired"})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Not authenticated"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Not allowed"})
	default:
		utils.FromContext(c, h.logger).Error("unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

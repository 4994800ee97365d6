package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
	"github.com/edupulse/attempt-service/internal/services"
	"github.com/edupulse/attempt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService    services.AttemptService
	submissionService services.SubmissionService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	submissionService services.SubmissionService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:       NewBaseHandler(logger),
		attemptService:    attemptService,
		submissionService: submissionService,
	}
}

// StartAttempt starts or resumes an exam attempt
// @Summary Start exam attempt
// @Description Starts a new attempt for an exam, or resumes the student's active one
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.CanResume {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetAttempt returns the in-progress view of an attempt
// @Summary Get attempt
// @Description Returns an attempt with sanitized questions and saved answers
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByIDWithDetails(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetReview returns the post-submission review
// @Summary Get attempt review
// @Description Returns the graded review of a submitted attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptReview
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/review [get]
func (h *AttemptHandler) GetReview(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	review, err := h.attemptService.Review(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// SaveAnswer saves a single answer on an in-progress attempt
// @Summary Save answer
// @Description Saves the answer for one question; overwrites any previous answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Answer data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/answer [post]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Saving answer", "attempt_id", attemptID)

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: gin.H{"saved": true}})
}

// ToggleFlag flags or unflags a question for later review
// @Summary Toggle question flag
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param flag body services.ToggleFlagRequest true "Flag data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /attempts/{id}/flag [post]
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.ToggleFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	flagged, err := h.attemptService.ToggleFlag(c.Request.Context(), attemptID, req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: gin.H{"flagged": flagged}})
}

// GetProgress reports answered / total for an attempt
// @Summary Get attempt progress
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.ProgressResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/progress [get]
func (h *AttemptHandler) GetProgress(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.attemptService.Progress(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetTimeRemaining reports the countdown state of an attempt
// @Summary Get remaining time
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.TimeRemainingResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/time-remaining [get]
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	remaining, err := h.attemptService.TimeRemaining(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, remaining)
}

// SubmitAttempt grades and closes an attempt
// @Summary Submit attempt
// @Description Submits an attempt for grading; repeated calls return the stored summary
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param submit body services.SubmitAttemptRequest true "Final answers (optional)"
// @Success 200 {object} services.AttemptSummary
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "attempt_id", attemptID)

	// Every field is optional, so a body-less POST submits with defaults.
	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	summary, err := h.submissionService.Submit(c.Request.Context(), attemptID, req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListAttempts lists the caller's attempts
// @Summary List attempts
// @Tags attempts
// @Produce json
// @Param status query string false "Filter by status"
// @Param exam_id query uint false "Filter by exam"
// @Success 200 {object} services.AttemptListResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := parseAttemptFilters(c)

	attempts, err := h.attemptService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// GetAttemptsByExam lists every attempt of an exam (instructor view)
// @Summary List exam attempts
// @Tags attempts
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} services.AttemptListResponse
// @Failure 403 {object} ErrorResponse
// @Router /attempts/exam/{exam_id} [get]
func (h *AttemptHandler) GetAttemptsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempts, err := h.attemptService.GetByExam(c.Request.Context(), examID, parseAttemptFilters(c), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// GetAttemptStats returns aggregate statistics for an exam
// @Summary Get exam attempt statistics
// @Tags attempts
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} repositories.AttemptStats
// @Failure 404 {object} ErrorResponse
// @Router /attempts/exam/{exam_id}/stats [get]
func (h *AttemptHandler) GetAttemptStats(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.attemptService.GetStats(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	var filters repositories.AttemptFilters

	if raw := c.Query("status"); raw != "" {
		status := models.AttemptStatus(raw)
		filters.Status = &status
	}
	if examID, err := parseUintQuery(c, "exam_id"); err == nil && examID > 0 {
		filters.ExamID = &examID
	}
	if limit, err := parseUintQuery(c, "limit"); err == nil && limit > 0 {
		filters.Limit = int(limit)
	}
	if offset, err := parseUintQuery(c, "offset"); err == nil {
		filters.Offset = int(offset)
	}
	filters.SortBy = c.Query("sort_by")
	filters.SortOrder = c.Query("sort_order")

	return filters
}

func parseUintQuery(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	var value uint
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, err
	}
	return value, nil
}

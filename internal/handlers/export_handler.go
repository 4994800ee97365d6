package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupulse/attempt-service/internal/services"
	"github.com/edupulse/attempt-service/internal/utils"
)

type ExportHandler struct {
	BaseHandler
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler:   NewBaseHandler(logger),
		exportService: exportService,
	}
}

// ExportExamResults streams the exam results workbook
// @Summary Export exam results
// @Description Renders every attempt of an exam as an xlsx download
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path uint true "Exam ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/exam/{exam_id}/export [get]
func (h *ExportHandler) ExportExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	workbook, err := h.exportService.ExportExamResults(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-results.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

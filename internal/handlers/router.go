package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/edupulse/attempt-service/internal/config"
	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/repositories"
	"github.com/edupulse/attempt-service/internal/services"
	"github.com/edupulse/attempt-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	exportHandler  *ExportHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), serviceManager.Submission(), logger),
		exportHandler:  NewExportHandler(serviceManager.Export(), logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/review", hm.attemptHandler.GetReview)
			attempts.POST("/:id/answer", hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/flag", hm.attemptHandler.ToggleFlag)
			attempts.GET("/:id/progress", hm.attemptHandler.GetProgress)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)

			// Instructor views
			attempts.GET("/exam/:exam_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.attemptHandler.GetAttemptsByExam)
			attempts.GET("/exam/:exam_id/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.attemptHandler.GetAttemptStats)
			attempts.GET("/exam/:exam_id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.exportHandler.ExportExamResults)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attempt-service",
		})
	})
}
